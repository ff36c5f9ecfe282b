package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"icsview/internal/config"
)

func TestListenAddress(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		flag       string
		port       string
		want       string
	}{
		{name: "config only", configured: "127.0.0.1:4000", want: "127.0.0.1:4000"},
		{name: "flag wins", configured: "127.0.0.1:4000", flag: ":9000", port: "8080", want: ":9000"},
		{name: "port env", configured: "127.0.0.1:4000", port: "8080", want: "127.0.0.1:8080"},
		{name: "port env with bad config", configured: "nonsense", port: "8080", want: ":8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, listenAddress(tt.configured, tt.flag, tt.port))
		})
	}
}

func TestFetchOptions(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Fetch.MaxRedirects = 0

	opts := fetchOptions(conf)

	assert.True(t, opts.NoRedirects)
	assert.Equal(t, time.Duration(config.DefaultFetchTimeoutSec)*time.Second, opts.Timeout)
	assert.Equal(t, time.Duration(config.DefaultProbeTimeoutSec)*time.Second, opts.ProbeTimeout)
	assert.Equal(t, conf.Fetch.UserAgent, opts.UserAgent)
}
