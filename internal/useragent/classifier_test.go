package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	iPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	iPadSafari    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/604.1"
	androidChrome = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	windowsChrome = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	legacyEdge    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.102 Safari/537.36 Edge/18.19582"
	macFirefox    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14.1; rv:121.0) Gecko/20100101 Firefox/121.0"
	linuxFirefox  = "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	classicOpera  = "Opera/9.80 (Windows NT 6.1; U; en) Presto/2.10.289 Version/12.00"
	kindleTablet  = "Mozilla/5.0 (Linux; U; en-us; KFAPWI Build/JDQ39) AppleWebKit/535.19 (KHTML, like Gecko) Silk/3.13 Safari/535.19"
	curlAgent     = "curl/8.4.0"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want Result
	}{
		{"iPhone Safari", iPhoneSafari, Result{DeviceMobile, "Safari", "iOS"}},
		{"iPad is mobile because the mobile list is checked first", iPadSafari, Result{DeviceMobile, "Safari", "iOS"}},
		{"Android Chrome", androidChrome, Result{DeviceMobile, "Chrome", "Android"}},
		{"Windows Chrome", windowsChrome, Result{DeviceDesktop, "Chrome", "Windows"}},
		{"legacy Edge wins over Chrome", legacyEdge, Result{DeviceDesktop, "Edge", "Windows"}},
		{"macOS Firefox", macFirefox, Result{DeviceDesktop, "Firefox", "macOS"}},
		{"Linux Firefox", linuxFirefox, Result{DeviceDesktop, "Firefox", "Linux"}},
		{"Presto Opera", classicOpera, Result{DeviceDesktop, "Opera", "Windows"}},
		{"Kindle Silk is a tablet", kindleTablet, Result{DeviceTablet, "Safari", "Linux"}},
		{"unknown agent", curlAgent, Result{DeviceDesktop, Unknown, Unknown}},
		{"empty agent", "", Result{DeviceDesktop, Unknown, Unknown}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ua))
		})
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	assert.Equal(t, Classify(androidChrome), Classify(toUpper(androidChrome)))
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify(iPhoneSafari)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify(iPhoneSafari))
	}
}

func toUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
