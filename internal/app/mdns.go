package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_geocache._tcp"
	mdnsDomain      = "local."
)

func (a *App) startMDNS(port int) error {
	if port <= 0 {
		return fmt.Errorf("invalid port %d", port)
	}

	a.stopMDNS()

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "geocache"
	}

	instance := sanitizeMDNSInstance(fmt.Sprintf("Geocache Location Server (%s)", hostname))
	txt := []string{
		fmt.Sprintf("http_port=%d", port),
		"api=/api",
		"proto=v1",
		fmt.Sprintf("host=%s", mdnsHostFQDN(hostname)),
	}
	if a.cfg.MetricsPort > 0 {
		txt = append(txt, fmt.Sprintf("metrics_port=%d", a.cfg.MetricsPort))
	}
	if a.cfg.MQTTBroker != "" {
		txt = append(txt, fmt.Sprintf("mqtt_prefix=%s", a.cfg.MQTTTopicPrefix))
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return err
	}

	a.mdns = server
	a.logger.Info("mDNS advertisement started", "instance", instance, "port", port)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS advertisement stopped")
	a.mdns = nil
}

// sanitizeMDNSInstance makes name usable as a DNS-SD instance label.
func sanitizeMDNSInstance(name string) string {
	cleaned := strings.NewReplacer("\n", " ", "\r", " ", ".", " ", "_", " ").Replace(strings.TrimSpace(name))
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Geocache Location Server"
	}
	return truncateRunes(cleaned, 63)
}

func mdnsHostFQDN(hostname string) string {
	label := strings.TrimSpace(strings.ToLower(hostname))
	label = strings.NewReplacer(" ", "-", "_", "-", "\n", "", "\r", "").Replace(label)
	if label == "" {
		label = "geocache"
	}
	label = truncateRunes(label, 63)
	if strings.Contains(label, ".") {
		return label
	}
	return label + ".local"
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
