package tracking

import (
	"math/rand"
	"strings"
)

var plateStates = []string{"MH", "DL", "KA", "TN", "GJ", "RJ", "UP", "WB", "PB", "HR"}
var plateDistricts = []string{"01", "12", "15", "20", "31", "45", "08", "47", "09", "14"}

const plateLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
const plateDigits = "0123456789"

//MockPlate returns a plausible plate string (e.g. MH12AB1234). It is cosmetic and carries no recognition claim.
func MockPlate() string {
	var sb strings.Builder
	sb.WriteString(plateStates[rand.Intn(len(plateStates))])
	sb.WriteString(plateDistricts[rand.Intn(len(plateDistricts))])
	for i := 0; i < 2; i++ {
		sb.WriteByte(plateLetters[rand.Intn(len(plateLetters))])
	}
	for i := 0; i < 4; i++ {
		sb.WriteByte(plateDigits[rand.Intn(len(plateDigits))])
	}
	return sb.String()
}
