package tools

import (
	"encoding/json"
	"math"
)

func FmtJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "marshal data fail"
	}
	return string(data)
}

const FloatMin = 0.000001

func IsFloatEqual(f1, f2 float64) bool {
	return math.Abs(f1-f2) < FloatMin
}

func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func RadiansToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
