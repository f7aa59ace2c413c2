package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"CapMatrix/internal/engine/protocol"
	"CapMatrix/pkg/pcap"
)

// pcapana prints the first records of a capture with the endpoints read at
// fixed offsets next to those of a full gopacket decode.
func main() {
	limit := flag.Int("n", 5, "Number of packets to print")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n count] <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := pcap.NewReader(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()
	buf := reader.Bytes()

	hdr, err := pcap.ValidateHeader(buf)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(hdr)

	index, err := pcap.BuildIndex(buf)
	if err != nil {
		log.Fatal(err)
	}
	ex, err := protocol.NewExtractor(hdr.LinkType())
	if err != nil {
		log.Fatal(err)
	}

	mismatches := 0
	for i, d := range index {
		src, dst, ok := ex.Endpoints(buf, d.Offset, d.CapLen)
		info, derr := protocol.Decode(buf[d.DataOffset():d.End()], hdr.LinkType())

		if i < *limit {
			fmt.Printf("#%d off=%d [%s] caplen=%d len=%d\n",
				i, d.Offset, d.Timestamp().Format("15:04:05.000000"), d.CapLen, d.OrigLen)
			if ok {
				fmt.Printf("    fixed:   %s -> %s\n", src, dst)
			} else {
				fmt.Printf("    fixed:   (too short)\n")
			}
			if derr == nil {
				fmt.Printf("    decoded: %s:%d -> %s:%d proto=%d\n",
					info.FiveTuple.SrcIP, info.FiveTuple.SrcPort,
					info.FiveTuple.DstIP, info.FiveTuple.DstPort,
					info.FiveTuple.Protocol)
			} else {
				fmt.Printf("    decoded: %v\n", derr)
			}
		}

		if ok && derr == nil && (src.String() != info.FiveTuple.SrcIP.String() || dst.String() != info.FiveTuple.DstIP.String()) {
			mismatches++
		}
	}
	fmt.Printf("%d packets, %d fixed-offset mismatches\n", len(index), mismatches)
}
