// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/geotagger/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
