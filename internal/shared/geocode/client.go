// Package geocode 地址转经纬度（OpenStreetMap Nominatim）
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	minAddressLen  = 5
)

var (
	houseNumberRe = regexp.MustCompile(`\d+號?`)
	districtRe    = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+[市區鎮鄉]`)
	roadRe        = regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+[路街道巷弄]`)
)

// Result 地址解析结果
type Result struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
	City        string  `json:"city,omitempty"`
	District    string  `json:"district,omitempty"`
	Road        string  `json:"road,omitempty"`
}

// Client Nominatim 客户端
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient 创建客户端，baseURL 为空时使用公共 Nominatim
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Geocode 依次尝试：完整地址 → 去掉门牌号 → 行政区+道路
// 找不到时返回 (nil, nil)；查询出错且没有任何结果时返回第一个错误
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	clean := strings.TrimSpace(address)
	if utf8.RuneCountInString(clean) < minAddressLen {
		return nil, nil
	}

	var firstErr error
	for _, q := range Candidates(clean) {
		res, err := c.search(ctx, q)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, firstErr
}

// Candidates 返回逐级简化的查询地址，已去重
func Candidates(address string) []string {
	out := []string{address}
	add := func(q string) {
		for _, existing := range out {
			if existing == q {
				return
			}
		}
		out = append(out, q)
	}

	withoutNumber := strings.TrimSpace(houseNumberRe.ReplaceAllString(address, ""))
	if withoutNumber != address && utf8.RuneCountInString(withoutNumber) > minAddressLen {
		add(withoutNumber)
	}

	// 道路从行政区之后开始匹配
	if loc := districtRe.FindStringIndex(address); loc != nil {
		if road := roadRe.FindString(address[loc[1]:]); road != "" {
			add(address[loc[0]:loc[1]] + road)
		}
	}
	return out
}

// InTaiwan 经纬度是否在台湾范围内
func InTaiwan(lat, lng float64) bool {
	return lat >= 21.5 && lat <= 25.5 && lng >= 119.5 && lng <= 122.5
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City   string `json:"city"`
		County string `json:"county"`
		Suburb string `json:"suburb"`
		Town   string `json:"town"`
		Road   string `json:"road"`
	} `json:"address"`
}

func (c *Client) search(ctx context.Context, query string) (*Result, error) {
	if !strings.Contains(query, "台灣") && !strings.Contains(query, "Taiwan") {
		query += ", Taiwan"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")
	params.Set("addressdetails", "1")
	params.Set("accept-language", "zh-TW")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建地理编码请求失败: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求地理编码失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("解析地理编码响应失败: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", p.Lon, err)
	}

	res := &Result{
		Latitude:    lat,
		Longitude:   lng,
		DisplayName: p.DisplayName,
		City:        p.Address.City,
		District:    p.Address.Suburb,
		Road:        p.Address.Road,
	}
	if res.City == "" {
		res.City = p.Address.County
	}
	if res.District == "" {
		res.District = p.Address.Town
	}
	return res, nil
}
