// Package recommend turns crop, alert and weather snapshots into farmer
// advice and keeps the persisted advice list consistent across cycles.
package recommend

import (
	"fmt"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// Weather thresholds above which a weather advisory fires.
const (
	HumidityThreshold  = 80.0 // percent
	WindSpeedThreshold = 25.0 // km/h
)

// Crop lifecycle windows, in whole days since planting (inclusive).
const (
	EarlyStageFirstDay = 0
	EarlyStageLastDay  = 30
	HillingFirstDay    = 45
	HillingLastDay     = 60
)

// plantingSeasonMonths are the months that trigger the planting advisory.
var plantingSeasonMonths = map[time.Month]bool{
	time.March: true,
	time.April: true,
	time.May:   true,
}

// alertActions is the fixed lookup of protective steps per hazard.
var alertActions = map[model.AlertType][]string{
	model.AlertFrost: {
		"Aplicar riego por aspersión durante la madrugada",
		"Cubrir cultivos jóvenes con mantas térmicas",
		"Revisar sistemas de calefacción si están disponibles",
		"Monitorear temperaturas durante la noche",
	},
	model.AlertHeavyRain: {
		"Verificar y limpiar sistemas de drenaje",
		"Evitar aplicaciones de fertilizantes o pesticidas",
		"Proteger plantas jóvenes con coberturas",
		"Revisar estructuras de soporte de cultivos",
	},
	model.AlertDrought: {
		"Implementar riego eficiente (goteo o microaspersión)",
		"Aplicar mulch para conservar humedad",
		"Revisar y optimizar programación de riego",
		"Considerar cultivos resistentes a sequía",
	},
	model.AlertHail: {
		"Instalar mallas antigranizo si es posible",
		"Refugiar cultivos en invernaderos móviles",
		"Preparar seguros agrícolas",
		"Monitorear pronósticos cada 2 horas",
	},
	model.AlertStrongWind: {
		"Reforzar tutores y estructuras de soporte",
		"Podar ramas que puedan quebrar",
		"Proteger cultivos con barreras cortaviento",
		"Asegurar elementos sueltos en el campo",
	},
}

// ActionsFor returns a copy of the protective steps for an alert type.
// Unknown types yield no actions.
func ActionsFor(t model.AlertType) model.Actions {
	steps := alertActions[t]
	if steps == nil {
		return model.Actions{}
	}
	out := make(model.Actions, len(steps))
	copy(out, steps)
	return out
}

// Input is the consistent snapshot a rule observes.
type Input struct {
	Crops   []model.Crop
	Alerts  []model.Alert
	Weather *model.Weather
	Now     time.Time
}

// stamp is the freshness suffix appended to rule-derived ids.
func (in Input) stamp() int64 {
	return in.Now.UnixMilli()
}

// Rule maps an observed condition to zero or more candidates.
type Rule struct {
	Name  string
	Apply func(in Input) []model.Recommendation
}

// Rules is the rule table in evaluation order.
var Rules = []Rule{
	{Name: "alert-crop", Apply: alertCropRule},
	{Name: "humidity", Apply: humidityRule},
	{Name: "wind", Apply: windRule},
	{Name: "early-stage", Apply: earlyStageRule},
	{Name: "potato-hilling", Apply: potatoHillingRule},
	{Name: "planting-season", Apply: plantingSeasonRule},
}

// alertCropRule emits one recommendation per (active alert, crop) pair.
// Relevance filtering is left to the presentation layer.
func alertCropRule(in Input) []model.Recommendation {
	var out []model.Recommendation
	for _, alert := range in.Alerts {
		var validUntil *time.Time
		if !alert.ValidUntil.IsZero() {
			v := alert.ValidUntil
			validUntil = &v
		}
		for _, crop := range in.Crops {
			out = append(out, model.Recommendation{
				ID:    fmt.Sprintf("alert-%s-%s-%d", alert.ID, crop.ID, in.stamp()),
				Title: fmt.Sprintf("Protección para %s - %s", crop.Name, alert.Title),
				Description: fmt.Sprintf(
					"Tu cultivo de %s en %s está en riesgo por %s. Toma medidas preventivas inmediatas.",
					crop.Name, crop.Location, alert.Description,
				),
				Type:         model.TypeAlert,
				Priority:     alert.Severity,
				Actions:      ActionsFor(alert.Type),
				RelatedCrop:  crop.Name,
				RelatedAlert: alert.ID,
				CreatedAt:    in.Now,
				ValidUntil:   validUntil,
			})
		}
	}
	return out
}

func humidityRule(in Input) []model.Recommendation {
	if in.Weather == nil || in.Weather.Humidity <= HumidityThreshold {
		return nil
	}
	return []model.Recommendation{{
		ID:    fmt.Sprintf("humidity-%d", in.stamp()),
		Title: "Alta Humedad Detectada",
		Description: fmt.Sprintf(
			"La humedad actual es del %.0f%%. Esto puede favorecer el desarrollo de enfermedades fúngicas en tus cultivos.",
			in.Weather.Humidity,
		),
		Type:     model.TypeWeather,
		Priority: model.PriorityMedium,
		Actions: model.Actions{
			"Mejorar ventilación en cultivos bajo cubierta",
			"Aplicar fungicidas preventivos si es necesario",
			"Evitar riego en las próximas horas",
			"Monitorear signos de enfermedades fúngicas",
		},
		CreatedAt: in.Now,
	}}
}

func windRule(in Input) []model.Recommendation {
	if in.Weather == nil || in.Weather.WindSpeed <= WindSpeedThreshold {
		return nil
	}
	return []model.Recommendation{{
		ID:    fmt.Sprintf("wind-%d", in.stamp()),
		Title: "Vientos Fuertes",
		Description: fmt.Sprintf(
			"Se detectan vientos de %.0f km/h. Esto puede afectar tus cultivos y estructuras.",
			in.Weather.WindSpeed,
		),
		Type:     model.TypeWeather,
		Priority: model.PriorityMedium,
		Actions: model.Actions{
			"Revisar y reforzar estructuras de soporte",
			"Postergar aplicaciones de pesticidas",
			"Asegurar herramientas y equipos",
			"Monitorear daños en cultivos altos",
		},
		CreatedAt: in.Now,
	}}
}

func earlyStageRule(in Input) []model.Recommendation {
	var out []model.Recommendation
	for _, crop := range in.Crops {
		days, ok := crop.DaysSincePlanting(in.Now)
		if !ok || days < EarlyStageFirstDay || days > EarlyStageLastDay {
			continue
		}
		out = append(out, model.Recommendation{
			ID:    fmt.Sprintf("early-stage-%s-%d", crop.ID, in.stamp()),
			Title: fmt.Sprintf("Cuidados Iniciales - %s", crop.Name),
			Description: fmt.Sprintf(
				"Tu cultivo de %s está en etapa inicial (%d días desde siembra). Es crucial mantener condiciones óptimas.",
				crop.Name, days,
			),
			Type:     model.TypeCrop,
			Priority: model.PriorityMedium,
			Actions: model.Actions{
				"Mantener humedad constante del suelo",
				"Proteger de vientos fuertes",
				"Aplicar fertilizante de arranque si no se hizo",
				"Monitorear plagas iniciales",
			},
			RelatedCrop: crop.Name,
			CreatedAt:   in.Now,
		})
	}
	return out
}

func potatoHillingRule(in Input) []model.Recommendation {
	var out []model.Recommendation
	for _, crop := range in.Crops {
		if crop.Type != model.CropTypePotato {
			continue
		}
		days, ok := crop.DaysSincePlanting(in.Now)
		if !ok || days < HillingFirstDay || days > HillingLastDay {
			continue
		}
		out = append(out, model.Recommendation{
			ID:          fmt.Sprintf("potato-hilling-%s-%d", crop.ID, in.stamp()),
			Title:       fmt.Sprintf("Tiempo de Aporque - %s", crop.Name),
			Description: "Tu cultivo de papa está listo para el aporque. Esta práctica es esencial para un buen desarrollo.",
			Type:        model.TypeCrop,
			Priority:    model.PriorityHigh,
			Actions: model.Actions{
				"Realizar aporque cuando las plantas tengan 15-20 cm",
				"Aplicar fertilizante antes del aporque",
				"Revisar presencia de gusano blanco",
				"Mantener suelo húmedo pero no encharcado",
			},
			RelatedCrop: crop.Name,
			CreatedAt:   in.Now,
		})
	}
	return out
}

func plantingSeasonRule(in Input) []model.Recommendation {
	if !plantingSeasonMonths[in.Now.Month()] {
		return nil
	}
	return []model.Recommendation{{
		ID:          fmt.Sprintf("season-planting-%d", in.stamp()),
		Title:       "Temporada de Siembra",
		Description: "Estamos en época óptima de siembra para muchos cultivos. Asegúrate de estar preparado.",
		Type:        model.TypeSeasonal,
		Priority:    model.PriorityLow,
		Actions: model.Actions{
			"Verificar calidad de semillas",
			"Preparar terrenos para siembra",
			"Revisar sistemas de riego",
			"Planificar calendario de cultivos",
		},
		CreatedAt: in.Now,
	}}
}
