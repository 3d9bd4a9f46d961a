package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

// Local gateway style: flat location fields, status built from get_output_status
const localLightJSON = `{"id":3,"name":"Kitchen","module_type":"D","room":2,"floor":1,"type":255,"status":{"id":3,"status":1,"dimmer":60,"ctimer":0,"locked":false}}`

// Cloud style: nested location, "_version", "value" instead of "dimmer"
const cloudOutputJSON = `{
	"id": 12,
	"name": "Garden",
	"type": "OUTLET",
	"location": {"installation_id": 1, "gateway_id": 7, "floor_id": null, "room_id": 4, "floor_coordinates": {"x": null, "y": null}},
	"capabilities": ["ON_OFF"],
	"metadata": null,
	"status": {"on": true, "locked": false, "manual_override": false, "value": 40},
	"last_state_change": 1700000000.5,
	"_version": 1.0,
	"unexpected": {"deep": [1, 2, 3]}
}`

const shutterJSON = `{"id":2,"local_id":20,"name":"Living","type":"ROLLER","room_id":5,"floor_coordinates":{"x":3},"azimuth":180,"compass_point":"S","protocol":"somfy","capabilities":["POSITION"],"status":{"state":"STOPPED","position":45,"locked":false,"last_change":1.5,"preset_position":0}}`

const sensorJSON = `{"id":5,"name":"Bathroom","physical_quantity":"humidity","location":{"room_id":8,"floor_coordinates":{"x":4,"y":9}},"status":{"humidity":61.5,"temperature":21.25,"brightness":0}}`

const groupActionLocalJSON = `{"id":9,"name":"All off","actions":"2,10, 160,4","room":3}`

const groupActionCloudJSON = `{"id":9,"local_id":1,"name":"Evening","actions":[2,10,160,4],"location":{"installation_id":1}}`

const thermostatGroupJSON = `{"id":1,"name":"Ground floor","capabilities":["HEATING","COOLING"],"schedule":{"start":"2024-01-01"},"thermostat_ids":{"ids":[1,2]},"status":{"mode":"HEATING","state":"ON"},"_acl":{"set_state":{"allowed":true},"set_mode":{"allowed":false}},"_version":2}`

const thermostatUnitJSON = `{"id":4,"name":"Office","thermostat_group_id":1,"installation_id":1,"room_id":6,"status":{"actual_temperature":20.5,"setpoint_temperature":21,"output_0":100,"output_1":null,"preset":"AUTO"},"configuration":{"heating":{"output_0_id":3,"sensor_id":5,"away":16,"party":22,"vacation":15,"schedule":{"data":{"mon":[1,2]},"start":"x"}}},"acl":{"set_state":{"allowed":true},"set_mode":{"allowed":true}}}`

const energyJSON = `{"id":17,"name":"Heat pump","status":[230.1,50,3.2],"inverted":true}`

const installationJSON = `{"id":1,"name":"John Doe","description":"","gateway_model":"openmotics","_acl":{"configure":{"allowed":true},"view":{"allowed":true},"control":{"allowed":true}},"_version":1.0,"user_role":{"role":"ADMIN","user_id":1},"registration_key":"xxxxx-xxxxx-xxxxxxx","platform":"CLASSIC","building_roles":[],"version":"1.16.5","network":{"local_ip_address":"172.16.1.25"},"flags":{"UNREAD_NOTIFICATIONS":0,"ONLINE":null},"features":["control_events","thermostat_groups","ventilation_schema"]}`

const ventilationJSON = `{"id":1,"name":"Unit 1","status":{"state":"ON","mode":"AUTO"},"local_id":101}`

func decode[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		t.Fatalf("Unmarshal(%T) error = %v", v, err)
	}
	return v
}

// assertRoundTrip checks decode(encode(x)) == x.
func assertRoundTrip[T any](t *testing.T, x T) {
	t.Helper()
	encoded, err := json.Marshal(x)
	if err != nil {
		t.Fatalf("Marshal(%T) error = %v", x, err)
	}
	var again T
	if err := json.Unmarshal(encoded, &again); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", encoded, err)
	}
	if !reflect.DeepEqual(x, again) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v\njson: %s", again, x, encoded)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Run("light", func(t *testing.T) { assertRoundTrip(t, decode[Light](t, localLightJSON)) })
	t.Run("output", func(t *testing.T) { assertRoundTrip(t, decode[Output](t, cloudOutputJSON)) })
	t.Run("shutter", func(t *testing.T) { assertRoundTrip(t, decode[Shutter](t, shutterJSON)) })
	t.Run("sensor", func(t *testing.T) { assertRoundTrip(t, decode[Sensor](t, sensorJSON)) })
	t.Run("group action", func(t *testing.T) { assertRoundTrip(t, decode[GroupAction](t, groupActionLocalJSON)) })
	t.Run("thermostat group", func(t *testing.T) { assertRoundTrip(t, decode[ThermostatGroup](t, thermostatGroupJSON)) })
	t.Run("thermostat unit", func(t *testing.T) { assertRoundTrip(t, decode[ThermostatUnit](t, thermostatUnitJSON)) })
	t.Run("energy sensor", func(t *testing.T) { assertRoundTrip(t, decode[EnergySensor](t, energyJSON)) })
	t.Run("installation", func(t *testing.T) { assertRoundTrip(t, decode[Installation](t, installationJSON)) })
	t.Run("ventilation", func(t *testing.T) { assertRoundTrip(t, decode[VentilationUnit](t, ventilationJSON)) })
	t.Run("input", func(t *testing.T) {
		assertRoundTrip(t, decode[Input](t, `{"id":7,"name":"Door","room":2,"status":{"status":1}}`))
	})
}

func TestLight_LocalNormalization(t *testing.T) {
	l := decode[Light](t, localLightJSON)

	if l.ID != 3 || l.LocalID != 3 {
		t.Errorf("ID/LocalID = %d/%d, want 3/3", l.ID, l.LocalID)
	}
	if l.Location.RoomID != 2 {
		t.Errorf("Location.RoomID = %d, want 2 (from room)", l.Location.RoomID)
	}
	want := []string{CapabilityOnOff, CapabilityRange}
	if !reflect.DeepEqual(l.Capabilities, want) {
		t.Errorf("Capabilities = %v, want %v", l.Capabilities, want)
	}
	if l.Status == nil || !l.Status.On || l.Status.Value != 60 {
		t.Errorf("Status = %+v, want on at 60", l.Status)
	}
	if got := l.String(); got != "3_Kitchen" {
		t.Errorf("String() = %q, want 3_Kitchen", got)
	}
}

func TestLight_CapabilitiesNotOverridden(t *testing.T) {
	l := decode[Light](t, `{"id":1,"module_type":"D","capabilities":["ON_OFF"]}`)
	if !reflect.DeepEqual(l.Capabilities, []string{CapabilityOnOff}) {
		t.Errorf("Capabilities = %v, want [ON_OFF]", l.Capabilities)
	}

	relay := decode[Light](t, `{"id":1,"module_type":"O"}`)
	if !reflect.DeepEqual(relay.Capabilities, []string{CapabilityOnOff}) {
		t.Errorf("Capabilities = %v, want [ON_OFF]", relay.Capabilities)
	}
}

func TestOutput_CloudNormalization(t *testing.T) {
	o := decode[Output](t, cloudOutputJSON)

	if o.Location.RoomID != 4 || o.Location.GatewayID != 7 {
		t.Errorf("Location = %+v, want room 4 gateway 7", o.Location)
	}
	if o.Location.FloorCoordinates != nil {
		t.Errorf("FloorCoordinates = %+v, want nil for null axes", o.Location.FloorCoordinates)
	}
	if o.Status == nil || !o.Status.On || o.Status.Value != 40 {
		t.Errorf("Status = %+v, want on at 40", o.Status)
	}
	if o.Version != "1.0" {
		t.Errorf("Version = %q, want 1.0", o.Version)
	}
	if o.LocalID != 12 {
		t.Errorf("LocalID = %d, want 12", o.LocalID)
	}
	if o.IsLight() {
		t.Error("OUTLET should not be a light")
	}
}

func TestOutput_IsLight(t *testing.T) {
	tests := []struct {
		data string
		want bool
	}{
		{`{"id":1,"type":255}`, true},
		{`{"id":1,"type":"LIGHT"}`, true},
		{`{"id":1,"type":0}`, false},
	}
	for _, tt := range tests {
		o := decode[Output](t, tt.data)
		if got := o.IsLight(); got != tt.want {
			t.Errorf("IsLight(%s) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Location
	}{
		{"room fallback", `{"room":3}`, Location{RoomID: 3}},
		{"room_id wins", `{"room":3,"room_id":4}`, Location{RoomID: 4}},
		{"partial coordinates dropped", `{"floor_coordinates":{"x":1}}`, Location{}},
		{"full coordinates kept", `{"floor_coordinates":{"x":1,"y":2}}`, Location{FloorCoordinates: &FloorCoordinates{X: 1, Y: 2}}},
		{"zero coordinates kept", `{"floor_coordinates":{"x":0,"y":0}}`, Location{FloorCoordinates: &FloorCoordinates{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode[Location](t, tt.data)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Location = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestShutter_FlatFields(t *testing.T) {
	s := decode[Shutter](t, shutterJSON)

	if s.ShutterType != "ROLLER" {
		t.Errorf("ShutterType = %q, want ROLLER", s.ShutterType)
	}
	if s.LocalID != 20 {
		t.Errorf("LocalID = %d, want 20 (explicit local_id)", s.LocalID)
	}
	if s.Location.RoomID != 5 || s.Location.FloorCoordinates != nil {
		t.Errorf("Location = %+v, want room 5 without coordinates", s.Location)
	}
	if s.Attributes.Azimuth != "180" || s.Attributes.CompassPoint != "S" {
		t.Errorf("Attributes = %+v, want azimuth 180 compass S", s.Attributes)
	}
	if s.Metadata.Protocol != "somfy" {
		t.Errorf("Metadata.Protocol = %q, want somfy", s.Metadata.Protocol)
	}
	if s.Status == nil || s.Status.Position != 45 || s.Status.State != ShutterStateStopped {
		t.Errorf("Status = %+v, want STOPPED at 45", s.Status)
	}
}

func TestSensor_NestedLocation(t *testing.T) {
	s := decode[Sensor](t, sensorJSON)

	if s.Location.RoomID != 8 {
		t.Errorf("Location.RoomID = %d, want 8", s.Location.RoomID)
	}
	if fc := s.Location.FloorCoordinates; fc == nil || fc.X != 4 || fc.Y != 9 {
		t.Errorf("FloorCoordinates = %+v, want {4 9}", fc)
	}
	if s.Status.Humidity != 61.5 {
		t.Errorf("Humidity = %v, want 61.5", s.Status.Humidity)
	}
}

func TestGroupAction_Actions(t *testing.T) {
	local := decode[GroupAction](t, groupActionLocalJSON)
	cloud := decode[GroupAction](t, groupActionCloudJSON)

	want := ActionList{2, 10, 160, 4}
	if !reflect.DeepEqual(local.Actions, want) {
		t.Errorf("local Actions = %v, want %v", local.Actions, want)
	}
	if !reflect.DeepEqual(cloud.Actions, want) {
		t.Errorf("cloud Actions = %v, want %v", cloud.Actions, want)
	}
	if local.Location.RoomID != 3 {
		t.Errorf("Location.RoomID = %d, want 3", local.Location.RoomID)
	}

	var bad GroupAction
	if err := json.Unmarshal([]byte(`{"id":1,"actions":"2,x"}`), &bad); err == nil {
		t.Error("invalid action code should fail to decode")
	}
}

func TestThermostatGroup(t *testing.T) {
	g := decode[ThermostatGroup](t, thermostatGroupJSON)

	if !g.ACL.SetState.Allowed || g.ACL.SetMode.Allowed {
		t.Errorf("ACL = %+v, want set_state allowed, set_mode denied", g.ACL)
	}
	if g.Schedule == nil || g.Schedule.Data == nil {
		t.Errorf("Schedule = %+v, want non-nil data", g.Schedule)
	}
	if g.Status.State != "ON" || g.Status.Mode != ThermostatModeHeating {
		t.Errorf("Status = %+v, want HEATING/ON", g.Status)
	}
	if g.Version != "2" {
		t.Errorf("Version = %q, want 2", g.Version)
	}
}

func TestThermostatUnit(t *testing.T) {
	u := decode[ThermostatUnit](t, thermostatUnitJSON)

	if u.Status.CurrentSetpoint != 21 {
		t.Errorf("CurrentSetpoint = %v, want 21", u.Status.CurrentSetpoint)
	}
	if u.Status.Output0 != "100" || u.Status.Output1 != "" {
		t.Errorf("outputs = %q/%q, want 100/empty", u.Status.Output0, u.Status.Output1)
	}
	if u.Location.ThermostatGroupID != 1 || u.Location.RoomID != 6 {
		t.Errorf("Location = %+v, want group 1 room 6", u.Location)
	}
	heating := u.Configuration.Heating
	if heating == nil || heating.Presets.Away != "16" || heating.SensorID != 5 {
		t.Errorf("Heating = %+v, want away 16 sensor 5", heating)
	}

	alt := decode[ThermostatUnitStatus](t, `{"current_setpoint":19.5}`)
	if alt.CurrentSetpoint != 19.5 {
		t.Errorf("CurrentSetpoint = %v, want 19.5", alt.CurrentSetpoint)
	}
}

func TestEnergySensor_StatusList(t *testing.T) {
	e := decode[EnergySensor](t, energyJSON)

	want := EnergyStatus{Voltage: 230.1, Frequency: 50, Current: 3.2, Power: 0}
	if e.Status == nil || *e.Status != want {
		t.Errorf("Status = %+v, want %+v", e.Status, want)
	}

	encoded, err := json.Marshal(e.Status)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(encoded) != "[230.1,50,3.2,0]" {
		t.Errorf("encoded status = %s, want [230.1,50,3.2,0]", encoded)
	}
}

func TestInstallation(t *testing.T) {
	i := decode[Installation](t, installationJSON)

	if i.ACL == nil || i.ACL.Control == nil || !i.ACL.Control.Allowed {
		t.Errorf("ACL = %+v, want control allowed", i.ACL)
	}
	if i.Version != "1.0" || i.FirmwareVersion != "1.16.5" {
		t.Errorf("Version/FirmwareVersion = %q/%q, want 1.0/1.16.5", i.Version, i.FirmwareVersion)
	}
	if i.Network == nil || i.Network.LocalIPAddress != "172.16.1.25" {
		t.Errorf("Network = %+v, want 172.16.1.25", i.Network)
	}
	if i.Online() {
		t.Error("null ONLINE flag should read as offline")
	}
	if !i.HasFeature("thermostat_groups") {
		t.Error("HasFeature(thermostat_groups) = false, want true")
	}
	if got := fmt.Sprint(i); got != "1_John Doe" {
		t.Errorf("String() = %q, want 1_John Doe", got)
	}
}

func TestVentilationUnit(t *testing.T) {
	v := decode[VentilationUnit](t, ventilationJSON)

	if v.ID != 1 || v.LocalID != 101 {
		t.Errorf("ID/LocalID = %d/%d, want 1/101", v.ID, v.LocalID)
	}
	if v.Status == nil || v.Status.State != "ON" || v.Status.Mode != "AUTO" {
		t.Errorf("Status = %+v, want ON/AUTO", v.Status)
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	data := `{"id":1,"name":"x","brand_new_field":{"a":[1,{"b":2}]},"another":"value"}`

	var l Light
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		t.Errorf("Light: unexpected error %v", err)
	}
	var s Shutter
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Errorf("Shutter: unexpected error %v", err)
	}
	var u ThermostatUnit
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		t.Errorf("ThermostatUnit: unexpected error %v", err)
	}
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		data    string
		want    FlexString
		wantErr bool
	}{
		{`"1.2"`, "1.2", false},
		{`1.0`, "1.0", false},
		{`true`, "true", false},
		{`null`, "", false},
		{`{"a":1}`, "", true},
	}

	for _, tt := range tests {
		var s FlexString
		err := json.Unmarshal([]byte(tt.data), &s)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.data, err, tt.wantErr)
			continue
		}
		if s != tt.want {
			t.Errorf("Unmarshal(%s) = %q, want %q", tt.data, s, tt.want)
		}
	}
}
