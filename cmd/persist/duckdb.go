//go:build cgo

package main

import _ "github.com/syssam/persist/drivers/duckdb"
