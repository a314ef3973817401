package homekit

import (
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
)

const (
	// Eve Energy, see https://github.com/simont77/fakegato-history
	TypeEveEnergyService = "E863F007-079E-48FF-8F27-9C2605A29F52"

	TypeEveCurrentConsumption = "E863F10D-079E-48FF-8F27-9C2605A29F52" // Watts
	TypeEveVoltage            = "E863F10A-079E-48FF-8F27-9C2605A29F52" // Volts
	TypeEveCurrent            = "E863F126-079E-48FF-8F27-9C2605A29F52" // Amperes
)

// EveEnergyService shows power, voltage and current in the Eve app.
// Apple Home ignores it.
type EveEnergyService struct {
	*service.S

	CurrentConsumption *characteristic.Float
	Voltage            *characteristic.Float
	Current            *characteristic.Float
}

func NewEveEnergyService() *EveEnergyService {
	s := EveEnergyService{}
	s.S = service.New(TypeEveEnergyService)

	s.CurrentConsumption = readOnlyFloat(TypeEveCurrentConsumption, 100000, 0.1)
	s.AddC(s.CurrentConsumption.C)

	s.Voltage = readOnlyFloat(TypeEveVoltage, 500, 0.1)
	s.AddC(s.Voltage.C)

	s.Current = readOnlyFloat(TypeEveCurrent, 400, 0.01)
	s.AddC(s.Current.C)

	return &s
}

func readOnlyFloat(typ string, maxValue, step float64) *characteristic.Float {
	c := characteristic.NewFloat(typ)
	c.SetMinValue(0)
	c.SetMaxValue(maxValue)
	c.SetStepValue(step)
	c.Permissions = []string{characteristic.PermissionRead, characteristic.PermissionEvents}
	return c
}
