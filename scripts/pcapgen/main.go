package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"CapMatrix/pkg/pcap/synth"

	"github.com/google/gopacket/layers"
)

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	packetCount := flag.Int("c", 1000, "Number of packets to generate")
	sources := flag.Int("src", 16, "Size of the source address pool")
	destinations := flag.Int("dst", 64, "Size of the destination address pool")
	loopback := flag.Bool("null", false, "Write a BSD loopback (DLT_NULL) capture instead of Ethernet")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	if *sources <= 0 || *sources > 65536 || *destinations <= 0 || *destinations > 65536 {
		log.Fatalf("Address pools must hold between 1 and 65536 addresses")
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()
	out := bufio.NewWriter(f)

	linkType := layers.LinkTypeEthernet
	if *loopback {
		linkType = layers.LinkTypeNull
	}
	w, err := synth.NewWriter(out, 65536, linkType)
	if err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	log.Printf("Generating %d packets into %s...", *packetCount, *outputFile)

	ts := time.Now()
	for i := 0; i < *packetCount; i++ {
		if (i+1)%100000 == 0 {
			log.Printf("Generated %d packets...", i+1)
		}

		s := rng.Intn(*sources)
		d := rng.Intn(*destinations)
		p := synth.Packet{
			Src:     fmt.Sprintf("10.%d.%d.%d", s>>16, (s>>8)&0xff, s&0xff),
			Dst:     fmt.Sprintf("172.16.%d.%d", (d>>8)&0xff, d&0xff),
			SrcPort: uint16(rng.Intn(65535-1024) + 1024),
			DstPort: uint16(rng.Intn(65535-1024) + 1024),
			Payload: rng.Intn(1400) + 50,
		}
		ts = ts.Add(time.Duration(rng.Intn(1000)) * time.Microsecond)
		if err := w.Write(p, ts); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}

	if err := out.Flush(); err != nil {
		log.Fatalf("Failed to flush output: %v", err)
	}
	log.Printf("Successfully generated %d packets into %s.", *packetCount, *outputFile)
}
