// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/perflab/services/bench/oracle"
)

// Operation identifies one benchmarked pixel transformation.
type Operation int

const (
	// Rotate is the 90° rotation.
	Rotate Operation = iota

	// RotateT is the rotation variant benchmarked separately (rotate_t).
	RotateT

	// Blend is alpha compositing over the background color.
	Blend

	// BlendV is the blend variant benchmarked separately (blend_v).
	BlendV

	// Smooth is the 3×3 box average.
	Smooth
)

// Operations lists every operation in the fixed order they are benchmarked,
// dumped and reported.
var Operations = []Operation{Rotate, RotateT, Blend, BlendV, Smooth}

// String returns the command-line name of the operation.
func (o Operation) String() string {
	return o.Name()
}

// Name returns the command-line name: rotate, rotate_t, blend, blend_v, smooth.
func (o Operation) Name() string {
	switch o {
	case Rotate:
		return "rotate"
	case RotateT:
		return "rotate_t"
	case Blend:
		return "blend"
	case BlendV:
		return "blend_v"
	case Smooth:
		return "smooth"
	default:
		return "unknown"
	}
}

// Title returns the capitalized label used in reports.
func (o Operation) Title() string {
	switch o {
	case Rotate:
		return "Rotate"
	case RotateT:
		return "Rotate_T"
	case Blend:
		return "Blend"
	case BlendV:
		return "Blend_V"
	case Smooth:
		return "Smooth"
	default:
		return "Unknown"
	}
}

// Tag returns the one-letter selection file tag.
func (o Operation) Tag() byte {
	switch o {
	case Rotate:
		return 'R'
	case RotateT:
		return 'T'
	case Blend:
		return 'B'
	case BlendV:
		return 'V'
	case Smooth:
		return 'S'
	default:
		return '?'
	}
}

// Kind returns the correctness check used for the operation. The variants
// share the check of their base operation.
func (o Operation) Kind() oracle.Kind {
	switch o {
	case Blend, BlendV:
		return oracle.KindBlend
	case Smooth:
		return oracle.KindSmooth
	default:
		return oracle.KindRotate
	}
}

// Valid reports whether o is one of Operations.
func (o Operation) Valid() bool {
	return o >= Rotate && o <= Smooth
}

// ParseOperation converts a command-line name into an Operation.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations {
		if op.Name() == strings.TrimSpace(name) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// OperationForTag converts a selection file tag into an Operation.
func OperationForTag(tag byte) (Operation, error) {
	for _, op := range Operations {
		if op.Tag() == tag {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
}

// MarshalText encodes the operation as its command-line name.
func (o Operation) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperation, int(o))
	}
	return []byte(o.Name()), nil
}

// UnmarshalText decodes a command-line name.
func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}
