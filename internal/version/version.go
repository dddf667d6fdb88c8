// ABOUTME: Version and product identification
// ABOUTME: Printed in the startup banner of the client and server
package version

import "fmt"

const (
	Version      = "1.0"
	Product      = "mp3stream"
	Manufacturer = "Resonate Protocol"
	Transport    = "TCP"
)

// Banner returns the startup lines shown by both binaries
func Banner(role string) []string {
	return []string{
		fmt.Sprintf("%s %s version %s", Product, role, Version),
		fmt.Sprintf("Transport protocol: %s", Transport),
	}
}
