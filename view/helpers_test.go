// Copyright 2026 The Retrotable Authors
// This file is part of retrotable.
//
// Retrotable is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package view

import "github.com/retrotable/retrotable/column"

type fakeOwner string

func (f fakeOwner) Name() string { return string(f) }

func viewTestSchema() column.Schema {
	schema, err := column.NewSchema([]string{"k"}, map[string]column.Type{"k": column.Int{}})
	if err != nil {
		panic(err)
	}
	return schema
}
