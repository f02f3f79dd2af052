package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isp-agent-service/internal/genieacs"
	"isp-agent-service/internal/models"
)

func wifiFixture() (*fakeStore, *fakeACS, *WifiService, *models.Customer) {
	st := newFakeStore()
	cust := st.addCustomer(models.Customer{
		TenantID:       7,
		CPF:            "12345678900",
		PPPoELogin:     "maria@fibranet",
		WifiSSID2G:     "Casa",
		WifiPassword2G: "senha-antiga",
		WifiSSID5G:     "Casa-5G",
		WifiPassword5G: "senha-5g",
	})
	acs := &fakeACS{deviceID: "DEV-1", config: genieacs.WifiConfig{SSID2G: "Casa", Password2G: "senha-antiga", SSID5G: "Casa-5G", Password5G: "senha-5g"}}
	return st, acs, &WifiService{ACS: acsFactory(acs), Store: st}, cust
}

func TestWifiUpdateOnlyTouchesSuppliedFields(t *testing.T) {
	st, acs, svc, stored := wifiFixture()
	cust := *stored

	err := svc.Update(context.Background(), models.Tenant{ID: 7}, &cust, genieacs.WifiUpdate{SSID2G: "Casa Nova"})
	require.NoError(t, err)

	require.Len(t, acs.updates, 1)
	assert.Equal(t, genieacs.WifiUpdate{SSID2G: "Casa Nova"}, acs.updates[0])
	assert.Equal(t, "senha-antiga", acs.config.Password2G)
	assert.Equal(t, "Casa-5G", acs.config.SSID5G)
	assert.Equal(t, "senha-5g", acs.config.Password5G)

	require.Len(t, st.wifi, 1)
	require.NotNil(t, st.wifi[0].SSID2G)
	assert.Equal(t, "Casa Nova", *st.wifi[0].SSID2G)
	assert.Nil(t, st.wifi[0].Password2G)
	assert.Nil(t, st.wifi[0].SSID5G)
	assert.Nil(t, st.wifi[0].Password5G)

	assert.Equal(t, "Casa Nova", stored.WifiSSID2G)
	assert.Equal(t, "senha-antiga", stored.WifiPassword2G)
	assert.Equal(t, "Casa-5G", stored.WifiSSID5G)
	assert.Equal(t, "senha-5g", stored.WifiPassword5G)
	assert.Equal(t, "Casa Nova", cust.WifiSSID2G)
}

func TestWifiDeviceIDIsLookedUpOnceAndCached(t *testing.T) {
	st, acs, svc, stored := wifiFixture()
	cust := *stored

	_, err := svc.Read(context.Background(), models.Tenant{ID: 7}, &cust)
	require.NoError(t, err)
	_, err = svc.Read(context.Background(), models.Tenant{ID: 7}, &cust)
	require.NoError(t, err)

	assert.Equal(t, []string{"maria@fibranet"}, acs.lookups)
	assert.Equal(t, "DEV-1", st.customers[cust.ID].ACSDeviceID)
	assert.Equal(t, 2, acs.readCalls)
}

func TestWifiReadFallsBackToCache(t *testing.T) {
	_, acs, svc, stored := wifiFixture()
	acs.readErr = &genieacs.Error{Kind: genieacs.KindConnection, Message: "dial tcp: connection refused"}
	cust := *stored

	res, err := svc.Read(context.Background(), models.Tenant{ID: 7}, &cust)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	require.NotNil(t, res.LastError)
	assert.Equal(t, genieacs.KindConnection, res.LastError.Kind)
	assert.Equal(t, "Casa", res.Config.SSID2G)
	assert.Equal(t, "senha-5g", res.Config.Password5G)
}

func TestWifiErrors(t *testing.T) {
	_, acs, svc, stored := wifiFixture()

	empty := models.Customer{ID: stored.ID, TenantID: 7}
	_, err := svc.Read(context.Background(), models.Tenant{ID: 7}, &empty)
	require.ErrorIs(t, err, ErrNoPPPoELogin)

	acs.deviceID = ""
	noWifi := models.Customer{ID: stored.ID, TenantID: 7, PPPoELogin: "x@y"}
	_, err = svc.Read(context.Background(), models.Tenant{ID: 7}, &noWifi)
	require.ErrorIs(t, err, ErrDeviceNotFound)

	cust := *stored
	err = svc.Update(context.Background(), models.Tenant{ID: 7}, &cust, genieacs.WifiUpdate{})
	require.ErrorIs(t, err, genieacs.ErrNothingToChange)
}

func TestWifiDeviceInfoMirrorsModem(t *testing.T) {
	st, acs, svc, stored := wifiFixture()
	acs.info = genieacs.DeviceInfo{Manufacturer: "Huawei", ProductClass: "HG8145V5", ExternalIP: "200.1.2.3", UptimeSeconds: 3600}
	cust := *stored

	info, err := svc.DeviceInfo(context.Background(), models.Tenant{ID: 7}, &cust)
	require.NoError(t, err)
	assert.Equal(t, "HG8145V5", info.ProductClass)
	assert.Equal(t, "HG8145V5", st.customers[cust.ID].ModemModel)
	assert.Equal(t, "Huawei", cust.ModemManufacturer)
	require.NotNil(t, cust.ModemLastSyncAt)
}

func TestDescribeWifiErrorCWMPPort(t *testing.T) {
	msg := describeWifiError(&genieacs.Error{Kind: genieacs.KindCWMPPort, StatusCode: 405, Message: "method not allowed"})
	assert.Contains(t, msg, "CWMP")
}
