package simple8b

import (
	"encoding/binary"
	"fmt"

	"github.com/colpack/colpack/errs"
)

// CountValues returns how many values word carries, counting skips. Words
// are always packed to exact capacity, so the count depends only on the
// selector.
func CountValues(word uint64) (int, error) {
	sel := word & 0xF
	switch sel {
	case 0:
		return 0, fmt.Errorf("%w: word 0x%016x", errs.ErrInvalidSelector, word)
	case rleSelector:
		return (int(word>>4&0xF) + 1) * rleRun, nil
	default:
		return selectorCapacity[sel], nil
	}
}

// Visit64 walks every packed value of blocks in order, calling fn with
// the raw value, or ok=false for a skip. blocks must be whole 8-byte
// little-endian words.
//
// lastNonRLE carries the run-length lookback: run-length words repeat the
// final slot of the closest preceding base word, which may live in an
// earlier call. Start it at SingleZeroWord and reset it whenever the
// surrounding stream restarts (an uncompressed literal in column data).
// Visit64 updates it as base words pass.
func Visit64(blocks []byte, lastNonRLE *uint64, fn func(v uint64, ok bool) error) error {
	if len(blocks)%8 != 0 {
		return fmt.Errorf("%w: %d trailing block bytes", errs.ErrInvalidBinary, len(blocks)%8)
	}

	for ; len(blocks) > 0; blocks = blocks[8:] {
		word := binary.LittleEndian.Uint64(blocks)
		sel := word & 0xF
		switch sel {
		case 0:
			return fmt.Errorf("%w: word 0x%016x", errs.ErrInvalidSelector, word)
		case rleSelector:
			count := (int(word>>4&0xF) + 1) * rleRun
			v, ok := lastInWord(*lastNonRLE)
			for i := 0; i < count; i++ {
				if err := fn(v, ok); err != nil {
					return err
				}
			}
		default:
			width := selectorBits[sel]
			mask := wordMask(width)
			for i := 0; i < selectorCapacity[sel]; i++ {
				raw := word >> (4 + i*width) & mask
				if raw == mask {
					if err := fn(0, false); err != nil {
						return err
					}
					continue
				}
				if err := fn(raw, true); err != nil {
					return err
				}
			}
			*lastNonRLE = word
		}
	}

	return nil
}

// Visit128 is Visit64 widened to Uint128 values. Packed values never
// exceed 60 bits, so the high half is always zero; the width exists for
// callers working in the 128-bit value domain.
func Visit128(blocks []byte, lastNonRLE *uint64, fn func(v Uint128, ok bool) error) error {
	return Visit64(blocks, lastNonRLE, func(v uint64, ok bool) error {
		return fn(Uint128From(v), ok)
	})
}

// Sum64 adds up the zigzag-decoded deltas of blocks. Skips contribute
// nothing. The result is the change of the last appended value across the
// blocks.
func Sum64(blocks []byte, lastNonRLE *uint64) (int64, error) {
	var sum int64
	err := Visit64(blocks, lastNonRLE, func(v uint64, ok bool) error {
		if ok {
			sum += ZigZagDecode64(v)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return sum, nil
}

// Sum128 adds up the zigzag-decoded deltas of blocks with wrap-around
// 128-bit arithmetic. Skips contribute nothing.
func Sum128(blocks []byte, lastNonRLE *uint64) (Uint128, error) {
	var sum Uint128
	err := Visit128(blocks, lastNonRLE, func(v Uint128, ok bool) error {
		if ok {
			sum = sum.Add(v.UnZigZag())
		}
		return nil
	})
	if err != nil {
		return Uint128{}, err
	}

	return sum, nil
}

// PrefixSum64 accumulates deltas of deltas. Each present value moves
// prefix by its zigzag-decoded amount and the moved prefix joins the sum,
// so the sum is the change of the last appended value across blocks whose
// packed values are second-order deltas. Skips advance neither.
func PrefixSum64(blocks []byte, prefix *int64, lastNonRLE *uint64) (int64, error) {
	var sum int64
	err := Visit64(blocks, lastNonRLE, func(v uint64, ok bool) error {
		if ok {
			*prefix += ZigZagDecode64(v)
			sum += *prefix
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return sum, nil
}
