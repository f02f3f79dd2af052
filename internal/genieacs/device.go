package genieacs

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"isp-agent-service/internal/logging"
)

const (
	findTimeout  = 10 * time.Second
	readTimeout  = 10 * time.Second
	probeTimeout = 5 * time.Second
	taskTimeout  = 30 * time.Second
)

var pppoeUsernamePaths = []string{
	"InternetGatewayDevice.WANDevice.1.WANConnectionDevice.1.WANPPPConnection.1.Username._value",
	"InternetGatewayDevice.WANDevice.1.WANConnectionDevice.2.WANPPPConnection.1.Username._value",
}

// FindDeviceByPPPoE returns the most recently seen device whose PPP
// username matches login. Both connection-device indices are tried, then
// the bare user part of user@domain. ("", nil) means nothing matched; when
// every query failed the last failure is returned.
func (c *Client) FindDeviceByPPPoE(ctx context.Context, login string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return "", nil
	}
	candidates := []string{login}
	if at := strings.Index(login, "@"); at > 0 {
		candidates = append(candidates, login[:at])
	}

	var lastErr error
	for _, user := range candidates {
		for _, path := range pppoeUsernamePaths {
			params := url.Values{}
			params.Set("sort", `{"_lastInform":-1}`)
			params.Set("limit", "1")
			devices, err := c.queryDevices(ctx, findTimeout, map[string]any{path: user}, params)
			if err != nil {
				lastErr = err
				continue
			}
			if len(devices) > 0 {
				if id := scalar(devices[0]["_id"]); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", lastErr
}

// WifiConfig is the flat per-band view of a router's Wi-Fi settings.
type WifiConfig struct {
	SSID2G       string `json:"ssid_2g"`
	Password2G   string `json:"password_2g"`
	SSID5G       string `json:"ssid_5g"`
	Password5G   string `json:"password_5g"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
}

const unknown = "Desconhecido"

func (c *Client) GetWifiConfig(ctx context.Context, deviceID string) (*WifiConfig, error) {
	dev, err := c.getDevice(ctx, readTimeout, deviceID,
		wlanRoot+",InternetGatewayDevice.DeviceInfo.ModelName,InternetGatewayDevice.DeviceInfo.Manufacturer")
	if err != nil {
		return nil, err
	}
	igd := child(dev, "InternetGatewayDevice")
	manufacturer := value(igd, "DeviceInfo", "Manufacturer")
	model := value(igd, "DeviceInfo", "ModelName")
	d := DetectDialect(manufacturer, model)

	out := &WifiConfig{Model: orUnknown(model), Manufacturer: orUnknown(manufacturer)}
	wlans := child(igd, "LANDevice", "1", "WLANConfiguration")
	if w := child(wlans, d.Index2G); value(w, "SSID") != "" {
		out.SSID2G = value(w, "SSID")
		out.Password2G = passphrase(w)
	}
	if w := child(wlans, d.Index5G); value(w, "SSID") != "" {
		out.SSID5G = value(w, "SSID")
		out.Password5G = passphrase(w)
	}
	return out, nil
}

// passphrase tries the nested, flat and legacy locations in turn.
func passphrase(wlan map[string]any) string {
	if v := value(wlan, "PreSharedKey", "1", "KeyPassphrase"); v != "" {
		return v
	}
	if v := value(wlan, "PreSharedKey"); v != "" {
		return v
	}
	return value(wlan, "KeyPassphrase")
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}

// WifiUpdate carries only the fields to change; empty means untouched.
type WifiUpdate struct {
	SSID2G     string `json:"ssid_2g,omitempty"`
	Password2G string `json:"password_2g,omitempty"`
	SSID5G     string `json:"ssid_5g,omitempty"`
	Password5G string `json:"password_5g,omitempty"`
}

func (u WifiUpdate) Empty() bool {
	return u.SSID2G == "" && u.Password2G == "" && u.SSID5G == "" && u.Password5G == ""
}

// ParameterValues builds setParameterValues triples for the supplied
// fields only, 5 GHz first.
func (u WifiUpdate) ParameterValues(d Dialect) [][]string {
	var out [][]string
	if u.SSID5G != "" {
		out = append(out, []string{d.WLANPath(d.Index5G) + ".SSID", u.SSID5G, "xsd:string"})
	}
	if u.Password5G != "" {
		out = append(out, []string{d.PassphrasePath(d.Index5G), u.Password5G, "xsd:string"})
	}
	if u.SSID2G != "" {
		out = append(out, []string{d.WLANPath(d.Index2G) + ".SSID", u.SSID2G, "xsd:string"})
	}
	if u.Password2G != "" {
		out = append(out, []string{d.PassphrasePath(d.Index2G), u.Password2G, "xsd:string"})
	}
	return out
}

// ChangeWifiConfig pushes a setParameterValues task. The vendor probe may
// fail; the default dialect is used then.
func (c *Client) ChangeWifiConfig(ctx context.Context, deviceID string, u WifiUpdate) error {
	if u.Empty() {
		return ErrNothingToChange
	}

	d := DefaultDialect
	dev, err := c.getDevice(ctx, probeTimeout, deviceID,
		"InternetGatewayDevice.DeviceInfo.ModelName,InternetGatewayDevice.DeviceInfo.Manufacturer")
	if err != nil {
		c.logger.WithError(err).Warn("vendor probe failed, using default wifi dialect")
	} else {
		igd := child(dev, "InternetGatewayDevice")
		d = DetectDialect(value(igd, "DeviceInfo", "Manufacturer"), value(igd, "DeviceInfo", "ModelName"))
	}

	task := map[string]any{
		"name":            "setParameterValues",
		"parameterValues": u.ParameterValues(d),
	}
	target := c.nbiURL + "/devices/" + url.PathEscape(deviceID) + "/tasks?timeout=3000&connection_request"
	if _, err := c.do(ctx, taskTimeout, http.MethodPost, target, task); err != nil {
		return err
	}
	c.logger.WithFields(logging.Fields{"dialect": d.Name, "params": len(task["parameterValues"].([][]string))}).Info("wifi task accepted")
	return nil
}

type ConnectedDevice struct {
	MAC      string `json:"mac"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
}

type DeviceInfo struct {
	Manufacturer     string            `json:"manufacturer"`
	ProductClass     string            `json:"product_class"`
	UptimeSeconds    int64             `json:"uptime"`
	ExternalIP       string            `json:"external_ip"`
	ConnectedDevices []ConnectedDevice `json:"connected_devices"`
	ConnectedCount   int               `json:"connected_count"`
}

func (c *Client) GetDeviceInfo(ctx context.Context, deviceID string) (*DeviceInfo, error) {
	dev, err := c.getDevice(ctx, readTimeout, deviceID,
		"InternetGatewayDevice.DeviceInfo,InternetGatewayDevice.WANDevice,InternetGatewayDevice.LANDevice")
	if err != nil {
		return nil, err
	}
	igd := child(dev, "InternetGatewayDevice")
	info := &DeviceInfo{
		Manufacturer: orUnknown(value(igd, "DeviceInfo", "Manufacturer")),
		ProductClass: value(igd, "DeviceInfo", "ProductClass"),
		ExternalIP:   externalIP(child(igd, "WANDevice")),
	}
	if info.ProductClass == "" {
		info.ProductClass = orUnknown(value(igd, "DeviceInfo", "ModelName"))
	}
	if up, err := strconv.ParseInt(value(igd, "DeviceInfo", "UpTime"), 10, 64); err == nil {
		info.UptimeSeconds = up
	}
	info.ConnectedDevices = connectedDevices(child(igd, "LANDevice", "1"))
	info.ConnectedCount = len(info.ConnectedDevices)
	return info, nil
}

// externalIP returns the first usable address, PPP before IP connections
// within each connection device.
func externalIP(wan map[string]any) string {
	for _, wd := range instances(wan) {
		for _, conn := range instances(child(wd, "WANConnectionDevice")) {
			for _, kind := range []string{"WANPPPConnection", "WANIPConnection"} {
				for _, pc := range instances(child(conn, kind)) {
					if ip := value(pc, "ExternalIPAddress"); ip != "" && ip != "0.0.0.0" {
						return ip
					}
				}
			}
		}
	}
	return ""
}

// connectedDevices prefers Wi-Fi associations and falls back to active LAN hosts.
func connectedDevices(lan map[string]any) []ConnectedDevice {
	out := []ConnectedDevice{}
	for _, wlan := range instances(child(lan, "WLANConfiguration")) {
		for _, a := range instances(child(wlan, "AssociatedDevice")) {
			mac := value(a, "AssociatedDeviceMACAddress")
			if mac == "" {
				continue
			}
			out = append(out, ConnectedDevice{MAC: mac, IP: value(a, "AssociatedDeviceIPAddress"), Hostname: "Wi-Fi Device"})
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, h := range instances(child(lan, "Hosts", "Host")) {
		if !truthy(h, "Active") {
			continue
		}
		name := value(h, "HostName")
		if name == "" {
			name = "LAN Device"
		}
		out = append(out, ConnectedDevice{MAC: value(h, "MACAddress"), IP: value(h, "IPAddress"), Hostname: name})
	}
	return out
}
