// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package xrand provides the checkpoint-minting randomness used by the
// history substrate. Adapted from erigon-lib/common/math.RandInt64.
package xrand

import (
	"crypto/rand"
	"math/big"
)

// Uint64 returns a cryptographically random value in [0, 2^64).
func Uint64() (uint64, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

// MustUint64 is like Uint64 but panics on failure, for call sites that hold
// a lock and have no sensible error path (minting never fails in practice:
// the only source of error is entropy exhaustion).
func MustUint64() uint64 {
	v, err := Uint64()
	if err != nil {
		panic("xrand: " + err.Error())
	}
	return v
}
