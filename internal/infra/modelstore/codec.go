package modelstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/agrofocus/yield-service/internal/domain/yield"
)

// Blob layout: magic | version | reserved | xxhash64(payload) big endian | zstd(JSON model).
const (
	blobMagic   = "AGYM"
	blobVersion = 1
	headerSize  = len(blobMagic) + 2 + 8
)

var (
	errShortBlob       = errors.New("blob shorter than header")
	errBadMagic        = errors.New("unrecognized blob magic")
	errChecksum        = errors.New("checksum mismatch")
	errMissingCrop     = errors.New("model has no crop")
	errNonFiniteWeight = errors.New("model carries a non-finite value")
)

var decoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("create zstd decoder: %v", err))
		}
		return decoder
	},
}

var encoderPool = sync.Pool{
	New: func() any {
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderCRC(false))
		if err != nil {
			panic(fmt.Sprintf("create zstd encoder: %v", err))
		}
		return encoder
	},
}

// Encode serializes a fitted model into the versioned blob format.
func Encode(model yield.FittedModel) ([]byte, error) {
	raw, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	encoder := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(encoder)

	out := make([]byte, headerSize, headerSize+len(raw)/2)
	copy(out, blobMagic)
	out[len(blobMagic)] = blobVersion
	payload := encoder.EncodeAll(raw, nil)
	binary.BigEndian.PutUint64(out[len(blobMagic)+2:], xxhash.Sum64(payload))
	return append(out, payload...), nil
}

// Decode parses a blob written by Encode. Every failure is reported as a
// *yield.ModelLoadError so callers can fall back to calibration.
func Decode(crop string, blob []byte) (yield.FittedModel, error) {
	model, err := decode(blob)
	if err != nil {
		return yield.FittedModel{}, &yield.ModelLoadError{Crop: crop, Err: err}
	}
	return model, nil
}

func decode(blob []byte) (yield.FittedModel, error) {
	if len(blob) < headerSize {
		return yield.FittedModel{}, errShortBlob
	}
	if string(blob[:len(blobMagic)]) != blobMagic {
		return yield.FittedModel{}, errBadMagic
	}
	if v := blob[len(blobMagic)]; v != blobVersion {
		return yield.FittedModel{}, fmt.Errorf("unsupported blob version %d", v)
	}
	sum := binary.BigEndian.Uint64(blob[len(blobMagic)+2 : headerSize])
	payload := blob[headerSize:]
	if xxhash.Sum64(payload) != sum {
		return yield.FittedModel{}, errChecksum
	}

	decoder := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(decoder)
	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return yield.FittedModel{}, fmt.Errorf("decompress: %w", err)
	}
	var model yield.FittedModel
	if err := json.Unmarshal(raw, &model); err != nil {
		return yield.FittedModel{}, fmt.Errorf("unmarshal: %w", err)
	}
	if model.Crop == "" {
		return yield.FittedModel{}, errMissingCrop
	}
	if !finite(model) {
		return yield.FittedModel{}, errNonFiniteWeight
	}
	return model, nil
}

func finite(m yield.FittedModel) bool {
	values := []float64{m.Coefficients.Intercept, m.Coefficients.NDVI, m.Coefficients.GDD, m.Coefficients.Precip, m.Metrics.RMSE}
	values = append(values, m.Standardization.Mean[:]...)
	values = append(values, m.Standardization.Scale[:]...)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
