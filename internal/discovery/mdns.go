// ABOUTME: mDNS service discovery for mp3stream servers
// ABOUTME: Handles advertisement by the server and one-shot browsing for clients
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the DNS-SD service advertised by servers
const ServiceType = "_mp3stream._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	// WebSocketPort is advertised in the TXT record when non-zero
	WebSocketPort int
	Logger        *zap.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
	Info []string
}

// Addr returns host:port
func (s ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config: config,
		logger: logger.Named("discovery"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// txtRecords returns the TXT entries describing this server
func (m *Manager) txtRecords() []string {
	txt := []string{"transport=tcp"}
	if m.config.WebSocketPort != 0 {
		txt = append(txt, fmt.Sprintf("ws_port=%d", m.config.WebSocketPort), "ws_path=/stream")
	}
	return txt
}

// Advertise advertises this server via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txtRecords(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	m.logger.Info("advertising mDNS service",
		zap.String("name", m.config.ServiceName),
		zap.Int("port", m.config.Port),
		zap.String("type", ServiceType))

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse queries the local network once and returns the servers that
// answered within timeout, sorted by name
func (m *Manager) Browse(timeout time.Duration) ([]ServerInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 16)

	var (
		mu      sync.Mutex
		servers []ServerInfo
		seen    = make(map[string]bool)
		done    = make(chan struct{})
	)
	go func() {
		defer close(done)
		for entry := range entries {
			info, ok := serverFromEntry(entry)
			if !ok {
				continue
			}
			mu.Lock()
			if !seen[info.Name] {
				seen[info.Name] = true
				servers = append(servers, info)
				m.logger.Debug("discovered server", zap.String("name", info.Name), zap.String("addr", info.Addr()))
			}
			mu.Unlock()
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mdns query failed: %w", err)
	}

	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	return servers, nil
}

// serverFromEntry converts an mDNS answer into a ServerInfo
func serverFromEntry(entry *mdns.ServiceEntry) (ServerInfo, bool) {
	if entry == nil || entry.Port == 0 {
		return ServerInfo{}, false
	}

	var host string
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	case entry.Host != "":
		host = strings.TrimSuffix(entry.Host, ".")
	default:
		return ServerInfo{}, false
	}

	name := entry.Name
	if i := strings.Index(name, "."+ServiceType); i > 0 {
		name = name[:i]
	}

	return ServerInfo{
		Name: name,
		Host: host,
		Port: entry.Port,
		Info: entry.InfoFields,
	}, true
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
