//go:build rp2040 || rp2350

package main

const defaultBoard = "pico"
