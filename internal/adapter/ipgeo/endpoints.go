package ipgeo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Fix is one endpoint's answer: coordinates plus whatever place and network
// metadata the endpoint's schema carries.
type Fix struct {
	Lat     float64
	Lon     float64
	City    string
	Region  string
	Country string
	Org     string
	ISP     string
}

// Endpoint is one public IP-geolocation service. Each has its own response
// schema, so parsing dispatches on endpoint identity.
type Endpoint struct {
	Name  string
	URL   string
	parse func(body []byte) (Fix, error)
}

// defaultEndpoints builds the known endpoint chain for the requested names,
// preserving the requested order. Unknown names are reported as errors so a
// typo in configuration fails at startup rather than silently shrinking the
// fallback chain.
func defaultEndpoints(names []string, ipinfoToken string) ([]Endpoint, error) {
	known := map[string]Endpoint{
		"ip-api": {
			Name:  "ip-api",
			URL:   "http://ip-api.com/json?fields=status,message,country,regionName,city,lat,lon,isp,org",
			parse: parseIPAPI,
		},
		"ipwho.is": {
			Name:  "ipwho.is",
			URL:   "https://ipwho.is/",
			parse: parseIPWhois,
		},
		"ipapi.co": {
			Name:  "ipapi.co",
			URL:   "https://ipapi.co/json/",
			parse: parseIPAPICo,
		},
	}
	if ipinfoToken != "" {
		known["ipinfo"] = Endpoint{
			Name:  "ipinfo",
			URL:   "https://ipinfo.io/json?token=" + ipinfoToken,
			parse: parseIPInfo,
		}
	}

	var out []Endpoint
	for _, name := range names {
		ep, ok := known[name]
		if !ok {
			if name == "ipinfo" {
				return nil, fmt.Errorf("endpoint ipinfo requires IPINFO_TOKEN")
			}
			return nil, fmt.Errorf("unknown IP geolocation endpoint %q", name)
		}
		out = append(out, ep)
	}
	return out, nil
}

func parseIPAPI(body []byte) (Fix, error) {
	var resp struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		City    string  `json:"city"`
		Region  string  `json:"regionName"`
		Country string  `json:"country"`
		ISP     string  `json:"isp"`
		Org     string  `json:"org"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fix{}, err
	}
	if resp.Status != "success" {
		return Fix{}, fmt.Errorf("ip-api error: %s", resp.Message)
	}
	return Fix{
		Lat: resp.Lat, Lon: resp.Lon,
		City: resp.City, Region: resp.Region, Country: resp.Country,
		Org: resp.Org, ISP: resp.ISP,
	}, nil
}

func parseIPWhois(body []byte) (Fix, error) {
	var resp struct {
		Success    bool    `json:"success"`
		Message    string  `json:"message"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		City       string  `json:"city"`
		Region     string  `json:"region"`
		Country    string  `json:"country"`
		Connection struct {
			Org string `json:"org"`
			ISP string `json:"isp"`
		} `json:"connection"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fix{}, err
	}
	if !resp.Success {
		return Fix{}, fmt.Errorf("ipwho.is error: %s", resp.Message)
	}
	return Fix{
		Lat: resp.Latitude, Lon: resp.Longitude,
		City: resp.City, Region: resp.Region, Country: resp.Country,
		Org: resp.Connection.Org, ISP: resp.Connection.ISP,
	}, nil
}

func parseIPAPICo(body []byte) (Fix, error) {
	var resp struct {
		Error     bool    `json:"error"`
		Reason    string  `json:"reason"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		City      string  `json:"city"`
		Region    string  `json:"region"`
		Country   string  `json:"country_name"`
		Org       string  `json:"org"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fix{}, err
	}
	if resp.Error {
		return Fix{}, fmt.Errorf("ipapi.co error: %s", resp.Reason)
	}
	return Fix{
		Lat: resp.Latitude, Lon: resp.Longitude,
		City: resp.City, Region: resp.Region, Country: resp.Country,
		Org: resp.Org, ISP: resp.Org,
	}, nil
}

// parseIPInfo handles ipinfo.io, which packs coordinates into a "loc" string.
func parseIPInfo(body []byte) (Fix, error) {
	var resp struct {
		Loc     string `json:"loc"`
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Org     string `json:"org"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Fix{}, err
	}
	parts := strings.SplitN(resp.Loc, ",", 2)
	if len(parts) != 2 {
		return Fix{}, fmt.Errorf("ipinfo: malformed loc %q", resp.Loc)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Fix{}, fmt.Errorf("ipinfo: malformed latitude in loc %q", resp.Loc)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Fix{}, fmt.Errorf("ipinfo: malformed longitude in loc %q", resp.Loc)
	}
	return Fix{
		Lat: lat, Lon: lon,
		City: resp.City, Region: resp.Region, Country: resp.Country,
		Org: resp.Org, ISP: resp.Org,
	}, nil
}
