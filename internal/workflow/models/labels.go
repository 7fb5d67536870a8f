package models

import "slices"

// Confidentiality (sifat) labels.
var ConfidentialityLabels = []string{"Biasa", "Penting", "Rahasia"}

// Urgency (derajat) labels.
var UrgencyLabels = []string{"Biasa", "Segera", "Kilat"}

// TodoCatalogue lists the disposition instructions a coordinator may attach.
var TodoCatalogue = []string{
	"Jadwalkan/Agendakan",
	"Bahas dengan saya",
	"Untuk ditindaklanjuti",
	"Untuk diketahui",
	"Siapkan bahan",
	"Siapkan Jawaban",
	"Diskusi dengan saya",
	"Hadir Mewakili",
	"Copy untuk saya",
	"Arsip/File",
}

// firstNotIn returns the first value missing from allowed, or "".
func firstNotIn(values, allowed []string) string {
	for _, v := range values {
		if !slices.Contains(allowed, v) {
			return v
		}
	}
	return ""
}

// UnknownTodo returns the first item not in TodoCatalogue, or "".
func UnknownTodo(items []string) string {
	return firstNotIn(items, TodoCatalogue)
}
