// exrinfo prints header and part summary information for an OpenEXR file
// without decoding pixel data.
//
// Usage:
//
//	exrinfo <filename>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/exrlab/goexr/exrutil"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <filename>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	path := flag.Arg(0)
	info, err := exrutil.GetFileInfo(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", info.Path)
	fmt.Printf("  size:        %d x %d\n", info.Width, info.Height)
	fmt.Printf("  compression: %v\n", info.Compression)
	fmt.Printf("  tiled:       %v", info.IsTiled)
	if info.IsTiled {
		fmt.Printf(" (%dx%d tiles)", info.TileWidth, info.TileHeight)
	}
	fmt.Println()
	fmt.Printf("  deep:        %v\n", info.IsDeep)
	fmt.Printf("  multi-part:  %v", info.IsMultiPart)
	if info.IsMultiPart {
		fmt.Printf(" (%d parts)", info.NumParts)
	}
	fmt.Println()
	fmt.Printf("  channels:    %v\n", info.Channels)
	fmt.Printf("  file size:   %d bytes\n", info.FileSize)
}
