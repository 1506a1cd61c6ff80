package weather

import (
	"strings"

	"github.com/i474232898/weather-tracker/internal/common"
)

// ClassifyOpenWeatherCode maps an OpenWeatherMap condition id to a Condition.
func ClassifyOpenWeatherCode(code int) Condition {
	switch {
	case code >= 200 && code < 300:
		return ConditionStorm
	case code >= 300 && code < 600:
		return ConditionRain
	case code >= 600 && code < 700:
		return ConditionSnow
	case code >= 700 && code < 800:
		return ConditionMist
	case code == 800:
		return ConditionClear
	case code > 800 && code < 900:
		return ConditionCloudy
	default:
		return ConditionUnknown
	}
}

// ClassifyWMOCode maps a WMO weather interpretation code (Open-Meteo) to a Condition.
func ClassifyWMOCode(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}

// ClassifyText maps a free-form condition label to a Condition.
func ClassifyText(text string) Condition {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return ConditionUnknown
	case common.HasAny(t, "thunder", "storm"):
		return ConditionStorm
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return ConditionSnow
	case common.HasAny(t, "rain", "shower", "drizzle"):
		return ConditionRain
	case common.HasAny(t, "mist", "fog", "haze"):
		return ConditionMist
	case common.HasAny(t, "cloud", "overcast"):
		return ConditionCloudy
	case common.HasAny(t, "sunny", "clear"):
		return ConditionClear
	default:
		return ConditionUnknown
	}
}
