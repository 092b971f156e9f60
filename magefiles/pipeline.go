// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

func binary() string { return binDir + "/" + binName }

// Generate builds the binary and runs the selection pipeline once.
func Generate() error {
	mg.Deps(Build)
	return sh.RunV(binary(), "generate")
}

// Replay runs the pipeline on a saved papers file, e.g. mage replay out/papers.debug.json.
func Replay(papers string) error {
	mg.Deps(Build)
	return sh.RunV(binary(), "generate", "--papers", papers)
}

// Serve builds the binary and starts the HTTP server.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binary(), "serve")
}

// QA answers the configured questions for one selected paper.
func QA(id string) error {
	mg.Deps(Build)
	return sh.RunV(binary(), "qa", id)
}
