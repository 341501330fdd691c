package progress

const DefaultColor = "blue"

// Colors is the fixed palette a bar may use, in editor order.
var Colors = []string{
	"blue", "purple", "red", "green", "orange", "pink",
	"yellow", "indigo", "teal", "cyan", "lime", "emerald",
}

func ValidColor(c string) bool {
	for _, v := range Colors {
		if v == c {
			return true
		}
	}
	return false
}
