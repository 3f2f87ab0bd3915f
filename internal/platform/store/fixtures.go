package store

import (
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/triage"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

// Fixtures returns a fresh copy of the seed data every store starts from.
func Fixtures() Snapshot {
	return Snapshot{
		Users: []*identity.User{
			{ID: "p1", Name: "Rajesh Kumar", Phone: "9876543210", Village: "Narayanpur", Area: "AP001", Role: identity.RolePatient},
			{ID: "p2", Name: "Sita Devi", Phone: "9876543211", Village: "Gollapudi", Area: "AP001", Role: identity.RolePatient},
			{ID: "p3", Name: "Mohan Rao", Phone: "9876543212", Village: "Jangareddygudem", Area: "AP002", Role: identity.RolePatient},
			{ID: "a1", Name: "Lakshmi Reddy", Phone: "9876543213", Village: "Vijayawada", Area: "AP001", Role: identity.RoleAdmin},
			{ID: "a2", Name: "Priya Sharma", Phone: "9876543214", Village: "Rajahmundry", Area: "AP002", Role: identity.RoleAdmin},
			{ID: "d1", Name: "Dr. Suresh Kumar", Phone: "9876543215", Village: "Vijayawada", Area: "AP001", Role: identity.RoleDoctor},
		},
		Requests: []*triage.HealthRequest{
			{ID: "r1", UserID: "p1", Symptom: "s1", Duration: 3, Date: "2025-04-18", Status: triage.StatusPending},
			{ID: "r2", UserID: "p2", Symptom: "s2", Duration: 5, Date: "2025-04-19", Status: triage.StatusReviewed},
			{ID: "r3", UserID: "p3", Symptom: "s3", Duration: 2, Date: "2025-04-20", Status: triage.StatusUrgent},
		},
		Orders: []*delivery.MedicineOrder{
			{ID: "o1", UserID: "p1", Address: "123 Main Street, Narayanpur, AP001", PostalCode: "500001", Date: "2025-04-20", Status: delivery.StatusPending},
			{ID: "o2", UserID: "p2", Address: "45 Temple Road, Gollapudi, AP001", PostalCode: "500002", Date: "2025-04-21", Status: delivery.StatusDelivering},
			{ID: "o3", UserID: "p3", Address: "789 Market Street, Jangareddygudem, AP002", PostalCode: "500003", Date: "2025-04-19", Status: delivery.StatusDelivered},
		},
		Symptoms: []*catalog.Symptom{
			{ID: "s1", Name: locale.Text{English: "Fever", Telugu: "జ్వరం"}, Icon: "thermometer"},
			{ID: "s2", Name: locale.Text{English: "Cough", Telugu: "దగ్గు"}, Icon: "cough"},
			{ID: "s3", Name: locale.Text{English: "Headache", Telugu: "తలనొప్పి"}, Icon: "head-cough"},
			{ID: "s4", Name: locale.Text{English: "Cold", Telugu: "జలుబు"}, Icon: "head-cold"},
			{ID: "s5", Name: locale.Text{English: "Stomach Pain", Telugu: "కడుపు నొప్పి"}, Icon: "virus"},
			{ID: "s6", Name: locale.Text{English: "Breathing Difficulty", Telugu: "శ్వాస సమస్య"}, Icon: "lungs"},
		},
	}
}
