package model

type BusinessHours struct {
	Weekday   int    `json:"weekday"`
	IsOpen    bool   `json:"is_open"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

type BlockedSlot struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

// Slot is one cell of a day's booking grid.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
