package utils

import (
	"net/http"
	"net/url"
	"time"
)

type HTTPClientConfig struct {
	Timeout   time.Duration
	KATimeout time.Duration
	ProxyURL  string
	UserAgent string
	Headers   map[string]string
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClipHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewClipHTTPClient(cfg HTTPClientConfig) *ClipHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 60 * time.Second
	}
	transport := &http.Transport{
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &ClipHTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config: cfg,
	}
}

func (c *ClipHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	return c.client.Do(req)
}
