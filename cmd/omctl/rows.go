package main

import (
	"strconv"
	"strings"

	"github.com/openmotics-go/openmotics/internal/ui"
	"github.com/openmotics-go/openmotics/pkg/models"
)

const none = "-"

func itoa(i int) string {
	return strconv.Itoa(i)
}

func room(id int) string {
	if id == 0 {
		return none
	}
	return itoa(id)
}

func switchState(status *models.OutputStatus) string {
	if status == nil {
		return none
	}
	return ui.Switch(status.On)
}

func level(status *models.OutputStatus) string {
	if status == nil {
		return none
	}
	return itoa(status.Value) + "%"
}

func float(v float64, unit string) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + unit
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func outputRow(o models.Output) []string {
	return []string{itoa(o.ID), o.Name, string(o.Type), switchState(o.Status), level(o.Status), room(o.Location.RoomID)}
}

func lightRow(l models.Light) []string {
	dimmable := false
	for _, c := range l.Capabilities {
		if c == models.CapabilityRange {
			dimmable = true
		}
	}
	return []string{itoa(l.ID), l.Name, switchState(l.Status), level(l.Status), yesNo(dimmable), room(l.Location.RoomID)}
}

func inputRow(i models.Input) []string {
	return []string{itoa(i.ID), i.Name, switchState(i.Status), room(i.Room)}
}

func sensorRow(s models.Sensor) []string {
	row := []string{itoa(s.ID), s.Name, strings.ToLower(s.PhysicalQuantity), none, none, none}
	if s.Status != nil {
		row[3] = float(s.Status.Temperature, "°C")
		row[4] = float(s.Status.Humidity, "%")
		row[5] = itoa(s.Status.Brightness) + "%"
	}
	return row
}

func energyRow(e models.EnergySensor) []string {
	row := []string{itoa(e.ID), e.Name, none, none, none, none}
	if e.Status != nil {
		row[2] = float(e.Status.Voltage, "V")
		row[3] = float(e.Status.Current, "A")
		row[4] = float(e.Status.Power, "W")
		row[5] = float(e.Status.Frequency, "Hz")
	}
	return row
}

func ventilationRow(v models.VentilationUnit) []string {
	row := []string{itoa(v.ID), v.Name, none, none, none}
	if v.Status != nil {
		row[2] = v.Status.State
		row[3] = v.Status.Mode
		row[4] = itoa(v.Status.Level) + "/" + itoa(v.AmountOfLevels)
	}
	return row
}

func shutterRow(s models.Shutter) []string {
	row := []string{itoa(s.ID), s.Name, s.ShutterType, none, none, none}
	if s.Status != nil {
		row[3] = strings.ToLower(s.Status.State)
		row[4] = itoa(s.Status.Position)
		row[5] = yesNo(s.Status.Locked)
	}
	return row
}

func groupActionRow(g models.GroupAction) []string {
	return []string{itoa(g.ID), g.Name, itoa(len(g.Actions) / 2)}
}

func thermostatGroupRow(g models.ThermostatGroup) []string {
	row := []string{itoa(g.ID), g.Name, none, none}
	if g.Status != nil {
		row[2] = strings.ToLower(g.Status.Mode)
		row[3] = strings.ToLower(string(g.Status.State))
	}
	return row
}

func thermostatUnitRow(u models.ThermostatUnit) []string {
	row := []string{itoa(u.ID), u.Name, none, none, none, itoa(u.Location.ThermostatGroupID)}
	if u.Status != nil {
		row[2] = float(u.Status.ActualTemperature, "°C")
		row[3] = float(u.Status.CurrentSetpoint, "°C")
		row[4] = strings.ToLower(u.Status.Preset)
	}
	return row
}

func installationRow(i models.Installation) []string {
	return []string{itoa(i.ID), i.Name, i.GatewayModel, i.FirmwareVersion, yesNo(i.Online())}
}
