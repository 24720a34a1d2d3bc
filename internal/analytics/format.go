package analytics

import (
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// Unknown 缺失字段的展示值
	Unknown = "Unknown"
	// Direct 没有来源时的展示值
	Direct = "Direct"
)

// MaskIP IPv4 隐藏最后一段为 xxx，IPv6 隐藏最后一段为 xxxx，无法解析时返回 Unknown
func MaskIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Unknown
	}
	if addr.Is4() {
		parts := strings.Split(ip, ".")
		parts[len(parts)-1] = "xxx"
		return strings.Join(parts, ".")
	}
	i := strings.LastIndex(ip, ":")
	return ip[:i+1] + "xxxx"
}

// FormatReferrer 只保留来源 URL 的主机名，无法解析时原样返回
func FormatReferrer(referrer string) string {
	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return referrer
	}
	return u.Hostname()
}

// relativeTime 生成 "3 minutes ago" 形式的相对时间
func relativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
