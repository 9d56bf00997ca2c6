package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Disease is a diagnosable condition tracked on the map.
type Disease struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SeedDiseases is the disease catalog every store is migrated with.
var SeedDiseases = []Disease{
	{ID: 1, Name: "Dengue"},
	{ID: 2, Name: "Measles"},
	{ID: 3, Name: "Skin infection"},
	{ID: 4, Name: "Diarrhea"},
	{ID: 5, Name: "Tuberculosis"},
}

// SeverityLevel ranks a diagnosis, 1 being the most severe.
type SeverityLevel int

const (
	SeverityCritical SeverityLevel = 1
	SeverityUrgent   SeverityLevel = 2
	SeverityMedium   SeverityLevel = 3
	SeverityLow      SeverityLevel = 4
	SeverityMinimal  SeverityLevel = 5
)

var severityNames = map[SeverityLevel]string{
	SeverityCritical: "Critical",
	SeverityUrgent:   "Urgent",
	SeverityMedium:   "Medium",
	SeverityLow:      "Low",
	SeverityMinimal:  "Minimal",
}

// String returns the severity's display name.
func (s SeverityLevel) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Valid reports whether s is one of the five known levels.
func (s SeverityLevel) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// Case is one diagnosed patient case. Location is the free-text region name
// the case was reported from and is matched against map regions verbatim.
type Case struct {
	ID            string        `json:"id"`
	DiseaseID     int           `json:"disease_id"`
	SeverityLevel SeverityLevel `json:"severity_level"`
	Location      string        `json:"location"`
	Confidence    float64       `json:"confidence"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks the fields a store needs before inserting a case.
func (c Case) Validate() error {
	if c.DiseaseID <= 0 {
		return eris.Errorf("model: invalid disease id %d", c.DiseaseID)
	}
	if !c.SeverityLevel.Valid() {
		return eris.Errorf("model: invalid severity level %d", c.SeverityLevel)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return eris.Errorf("model: confidence %v outside [0, 1]", c.Confidence)
	}
	return nil
}

// LocationCount is the number of cases of one disease reported from a location.
type LocationCount struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}
