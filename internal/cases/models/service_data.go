package models

import (
	"maps"
	"slices"
	"strings"
)

// ServiceDataKind tags the shape of a ServiceData payload.
type ServiceDataKind string

const (
	ServiceDataEquipment ServiceDataKind = "equipment"
	ServiceDataDiagnosis ServiceDataKind = "diagnosis"
	ServiceDataChecklist ServiceDataKind = "checklist"
	ServiceDataGeneric   ServiceDataKind = "generic"
)

// Equipment identifies one asset the case covers.
type Equipment struct {
	Name            string `json:"name" validate:"max=256"`
	InventoryNumber string `json:"inventoryNumber,omitempty" validate:"max=64"`
	Brand           string `json:"brand,omitempty" validate:"max=128"`
	Model           string `json:"model,omitempty" validate:"max=128"`
	Serial          string `json:"serial,omitempty" validate:"max=128"`
}

// ChecklistItem is one line of a preventive checklist.
type ChecklistItem struct {
	Item string `json:"item" validate:"required,max=256"`
	Done bool   `json:"done"`
}

// ServiceData is the type-specific payload of a case. The lifecycle core only
// reads it to match the equipmentName search criterion.
type ServiceData struct {
	Kind            ServiceDataKind   `json:"kind" validate:"omitempty,oneof=equipment diagnosis checklist generic"`
	Name            string            `json:"name,omitempty" validate:"max=256"`
	InventoryNumber string            `json:"inventoryNumber,omitempty" validate:"max=64"`
	Equipments      []Equipment       `json:"equipments,omitempty" validate:"max=64,dive"`
	Diagnosis       string            `json:"diagnosis,omitempty" validate:"max=4096"`
	Checklist       []ChecklistItem   `json:"checklist,omitempty" validate:"max=256,dive"`
	Extensions      map[string]string `json:"extensions,omitempty" validate:"max=32,dive,keys,min=1,max=64,endkeys,max=256"`
}

// Normalize fills the default kind and trims names.
func (d *ServiceData) Normalize() {
	if d.Kind == "" {
		d.Kind = ServiceDataGeneric
	}
	d.Name = strings.TrimSpace(d.Name)
	for i := range d.Equipments {
		d.Equipments[i].Name = strings.TrimSpace(d.Equipments[i].Name)
	}
}

// EquipmentNames returns the equipment names recorded in either payload
// location: the top-level name and each entry of equipments.
func (d ServiceData) EquipmentNames() []string {
	names := make([]string, 0, len(d.Equipments)+1)
	if d.Name != "" {
		names = append(names, d.Name)
	}
	for _, e := range d.Equipments {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	return names
}

// PrimaryEquipmentName is what documents and reports print: the first
// equipment entry, else the top-level name.
func (d ServiceData) PrimaryEquipmentName() string {
	if len(d.Equipments) > 0 && d.Equipments[0].Name != "" {
		return d.Equipments[0].Name
	}
	return d.Name
}

func (d ServiceData) Clone() ServiceData {
	out := d
	out.Equipments = slices.Clone(d.Equipments)
	out.Checklist = slices.Clone(d.Checklist)
	if d.Extensions != nil {
		out.Extensions = maps.Clone(d.Extensions)
	}
	return out
}
