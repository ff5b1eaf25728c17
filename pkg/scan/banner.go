/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package scan

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hearthlab/hearth/pkg/logger"
	"github.com/hearthlab/hearth/pkg/models"
)

// bannerEndpoint is one candidate scheme/port to probe.
type bannerEndpoint struct {
	scheme string
	port   int
}

// defaultBannerEndpoints covers the web UIs home devices usually expose.
var defaultBannerEndpoints = []bannerEndpoint{
	{"http", 80},
	{"https", 443},
	{"http", 8080},
	{"https", 8443},
	{"http", 8123},
	{"http", 32400},
	{"http", 5000},
	{"https", 5001},
}

// BannerProbe issues one bounded-size GET per candidate endpoint and
// extracts the server header, content type, and page title.
type BannerProbe struct {
	endpoints []bannerEndpoint
	timeout   time.Duration
	client    *http.Client
	logger    logger.Logger
}

var _ Probe = (*BannerProbe)(nil)

const bannerBodyLimit = 32 << 10

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

func NewBannerProbe(timeout time.Duration, log logger.Logger) *BannerProbe {
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	return &BannerProbe{
		endpoints: defaultBannerEndpoints,
		timeout:   timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				// self-signed certs are the norm on LAN devices
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: true}, // #nosec G402
				DisableKeepAlives: true,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: log.WithComponent("banner"),
	}
}

func (*BannerProbe) Name() string { return "http" }

func (p *BannerProbe) Run(ctx context.Context, target Target) ([]models.DiscoveryRecord, error) {
	if len(target.Hosts) == 0 {
		return nil, ErrEmptyTarget
	}

	now := time.Now()

	var records []models.DiscoveryRecord

	for _, host := range target.Hosts {
		services := p.probeHost(ctx, host)
		if len(services) == 0 {
			continue
		}

		records = append(records, models.DiscoveryRecord{
			IP:          host,
			WebServices: services,
			Method:      models.DiscoveryHTTP,
			Timestamp:   now,
		})
	}

	return records, nil
}

func (p *BannerProbe) probeHost(ctx context.Context, host string) []models.WebService {
	var services []models.WebService

	for _, ep := range p.endpoints {
		if ctx.Err() != nil {
			return services
		}

		if ws, ok := p.fetch(ctx, host, ep); ok {
			services = append(services, ws)
		}
	}

	return services
}

func (p *BannerProbe) fetch(ctx context.Context, host string, ep bannerEndpoint) (models.WebService, bool) {
	url := fmt.Sprintf("%s://%s/", ep.scheme, net.JoinHostPort(host, fmt.Sprint(ep.port)))

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return models.WebService{}, false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return models.WebService{}, false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, bannerBodyLimit))

	ws := models.WebService{
		Port:        ep.port,
		Scheme:      ep.scheme,
		Server:      resp.Header.Get("Server"),
		ContentType: resp.Header.Get("Content-Type"),
		Title:       extractTitle(body),
	}

	return ws, true
}

func extractTitle(body []byte) string {
	match := titleRe.FindSubmatch(body)
	if match == nil {
		return ""
	}

	title := strings.TrimSpace(string(match[1]))
	if len(title) > 120 {
		title = title[:120]
	}

	return title
}
