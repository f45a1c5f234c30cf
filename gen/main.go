package main

import (
	"fmt"
	"os"

	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/spacetime-network/farmer/plotting"
)

func main() {
	err := gen.WriteTupleEncodersToFile("./plotting/cbor_gen.go", "plotting",
		plotting.SectorMetadata{},
	)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
