package rpc

import (
	"encoding/base64"

	"github.com/klauspost/compress/zstd"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// Encoding types supported by the RPC
const (
	EncodingBase58     = "base58"
	EncodingBase64     = "base64"
	EncodingBase64Zstd = "base64+zstd"
	EncodingJSONParsed = "jsonParsed"
)

// maxBase58DataLen is the largest account payload returned as base58.
const maxBase58DataLen = 128

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

func EncodeBase58(data []byte) string {
	return base58.Encode(data)
}

func DecodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}

func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeAccountData encodes account data in the specified encoding.
// Returns a tuple of [data, encoding].
func EncodeAccountData(data []byte, encoding string) ([]interface{}, error) {
	switch encoding {
	case EncodingBase58:
		if len(data) > maxBase58DataLen {
			return nil, errors.New("data too large for base58 encoding, use base64")
		}
		return []interface{}{EncodeBase58(data), EncodingBase58}, nil

	case EncodingBase64, "", EncodingJSONParsed:
		return []interface{}{EncodeBase64(data), EncodingBase64}, nil

	case EncodingBase64Zstd:
		compressed := zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)))
		return []interface{}{EncodeBase64(compressed), EncodingBase64Zstd}, nil

	default:
		return nil, errors.Errorf("unsupported encoding: %s", encoding)
	}
}

// DecodeAccountData decodes account data from the specified encoding.
func DecodeAccountData(encoded string, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase58:
		return DecodeBase58(encoded)

	case EncodingBase64, "":
		return DecodeBase64(encoded)

	case EncodingBase64Zstd:
		compressed, err := DecodeBase64(encoded)
		if err != nil {
			return nil, err
		}
		data, err := zstdDecoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decompress data")
		}
		return data, nil

	default:
		return nil, errors.Errorf("unsupported encoding: %s", encoding)
	}
}

// DecodeTransactionData decodes a wire transaction sent as base58 (the
// default) or base64.
func DecodeTransactionData(encoded string, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingBase58, "":
		return DecodeBase58(encoded)
	case EncodingBase64:
		return DecodeBase64(encoded)
	default:
		return nil, errors.Errorf("unsupported transaction encoding: %s", encoding)
	}
}

func ValidateEncoding(encoding string) error {
	switch encoding {
	case EncodingBase58, EncodingBase64, EncodingBase64Zstd, EncodingJSONParsed, "":
		return nil
	default:
		return errors.Errorf("unsupported encoding: %s", encoding)
	}
}

// SliceData returns a slice of data based on offset and length.
// Returns the full data if slice is nil.
func SliceData(data []byte, slice *DataSlice) []byte {
	if slice == nil {
		return data
	}

	dataLen := uint64(len(data))
	if slice.Offset >= dataLen {
		return []byte{}
	}

	end := slice.Offset + slice.Length
	if end > dataLen || end < slice.Offset {
		end = dataLen
	}
	return data[slice.Offset:end]
}
