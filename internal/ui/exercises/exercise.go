package exercises

import "time"

// Exercise is one step shown during a rest break.
type Exercise struct {
	Title       string
	Description string
	Duration    time.Duration
}

// Defaults returns the built-in exercise list.
func Defaults() []Exercise {
	return []Exercise{
		{Title: "Eyes left and right", Description: "Slowly look to the far left, then to the far right. Keep your head still.", Duration: 20 * time.Second},
		{Title: "Eyes up and down", Description: "Look up as far as you can, then down. Breathe calmly.", Duration: 20 * time.Second},
		{Title: "Blink", Description: "Close your eyes tightly for a moment, then open them wide. Repeat.", Duration: 15 * time.Second},
		{Title: "Look into the distance", Description: "Find something far away and rest your eyes on it.", Duration: 30 * time.Second},
		{Title: "Roll your shoulders", Description: "Lift your shoulders to your ears and roll them backwards.", Duration: 20 * time.Second},
		{Title: "Stretch your neck", Description: "Tilt your head to one side, hold, then to the other side.", Duration: 30 * time.Second},
		{Title: "Stand up", Description: "Get up, stretch your arms above your head and walk around.", Duration: 45 * time.Second},
	}
}
