package cmd

// Live capture sources register themselves with the capture registry.
import (
	_ "firestige.xyz/procsniff/internal/capture/afpacket"
	_ "firestige.xyz/procsniff/internal/capture/pcap"
)
