package homekit

import (
	"net/http"

	"github.com/berfenger/sense2homekit/internal/config"
	"github.com/berfenger/sense2homekit/internal/core/domain"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

const (
	// ambient light level allows up to 100000 lux
	MAX_REPORTED_WATTS = 100000
)

// ReadingSource is the cached last reading.
type ReadingSource interface {
	Get() domain.Reading
	Watts() float64
}

// PowerMeterAccessory presents the current power draw as the ambient light
// level of a light sensor, the closest numeric characteristic Apple Home shows.
type PowerMeterAccessory struct {
	*accessory.A
	LightSensor *service.LightSensor
	Eve         *EveEnergyService

	readings ReadingSource
	logger   *zap.Logger
}

func NewPowerMeterAccessory(cfg *config.Config, readings ReadingSource, logger *zap.Logger) *PowerMeterAccessory {
	acc := PowerMeterAccessory{
		readings: readings,
		logger:   logger.With(zap.String("component", "homekit")),
	}

	name := cfg.DisplayName()
	acc.A = accessory.New(accessory.Info{
		Name:         name,
		Manufacturer: domain.MONITOR_MANUFACTURER,
		Model:        domain.MONITOR_MODEL,
		Firmware:     versioninfo.Short(),
	}, accessory.TypeSensor)

	acc.LightSensor = service.NewLightSensor()
	acc.LightSensor.CurrentAmbientLightLevel.SetMinValue(0)
	acc.LightSensor.CurrentAmbientLightLevel.SetMaxValue(MAX_REPORTED_WATTS)
	acc.LightSensor.CurrentAmbientLightLevel.ValueRequestFunc = func(*http.Request) (interface{}, int) {
		return acc.GetWatts(), 0
	}

	n := characteristic.NewName()
	n.SetValue(name)
	acc.LightSensor.AddC(n.C)

	acc.AddS(acc.LightSensor.S)

	if cfg.HomeKit.EveEnergy {
		acc.Eve = NewEveEnergyService()
		acc.AddS(acc.Eve.S)
	}

	return &acc
}

// GetWatts is the HomeKit read accessor. It never fails and never blocks on the stream.
// Values outside the characteristic range are clamped, as pushed values are.
func (a *PowerMeterAccessory) GetWatts() float64 {
	watts := clamp(a.readings.Watts(), 0, MAX_REPORTED_WATTS)
	a.logger.Debug("get watts called", zap.Float64("watts", watts))
	return watts
}

// Services lists the services published for the accessory, light sensor first.
func (a *PowerMeterAccessory) Services() []*service.S {
	services := []*service.S{a.LightSensor.S}
	if a.Eve != nil {
		services = append(services, a.Eve.S)
	}
	return services
}

// HandleEvent pushes accepted readings to subscribed HomeKit controllers.
func (a *PowerMeterAccessory) HandleEvent(evt any) {
	ev, ok := evt.(domain.ReadingUpdatedEvent)
	if !ok {
		return
	}
	a.LightSensor.CurrentAmbientLightLevel.SetValue(clamp(ev.Reading.PowerWatts, 0, MAX_REPORTED_WATTS))
	if a.Eve != nil {
		a.Eve.CurrentConsumption.SetValue(ev.Reading.PowerWatts)
		a.Eve.Voltage.SetValue(ev.Reading.VoltageVolts)
		a.Eve.Current.SetValue(ev.Reading.CurrentAmps)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
