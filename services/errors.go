package services

import "errors"

// Fehlerklassen der Service-Schicht. Die Handler mappen sie per errors.Is auf
// HTTP-Statuscodes (404 für fehlende Daten, 500 für Upstream-Probleme).
var (
	// ErrNoProfileData: weder Persona-Karte noch Survey für den Studenten vorhanden.
	ErrNoProfileData = errors.New("no profile data for user")

	// ErrEmptyPaperPool: der Paper-Pool ist leer, es gibt nichts zu empfehlen.
	ErrEmptyPaperPool = errors.New("no papers available")

	// ErrMalformedCompletion: die Modell-Antwort war kein gültiges JSON oder
	// verletzt die erwartete Form (genau 3 Einträge, Ranks 1..3, distinkte IDs).
	ErrMalformedCompletion = errors.New("malformed completion response")

	// ErrUnknownPaper: im Strict-Modus referenzierte das Modell eine Paper-ID,
	// die nicht im Pool existiert.
	ErrUnknownPaper = errors.New("completion referenced unknown paper")

	// ErrSessionNotFound: Interview-Session existiert nicht.
	ErrSessionNotFound = errors.New("interview session not found")
)
