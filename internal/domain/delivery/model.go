package delivery

import (
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

const EntityOrder = "order"

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
)

// Machine is the medicine order lifecycle, strictly linear.
var Machine = lifecycle.NewMachine(EntityOrder, StatusPending, map[string][]string{
	StatusPending:    {StatusConfirmed},
	StatusConfirmed:  {StatusDelivering},
	StatusDelivering: {StatusDelivered},
})

var StatusLabels = map[string]locale.Text{
	StatusPending:    {English: "Pending", Telugu: "పెండింగ్"},
	StatusConfirmed:  {English: "Confirmed", Telugu: "నిర్ధారించబడింది"},
	StatusDelivering: {English: "Out for Delivery", Telugu: "డెలివరీ కోసం బయలుదేరింది"},
	StatusDelivered:  {English: "Delivered", Telugu: "డెలివరీ చేయబడింది"},
}

type MedicineOrder struct {
	ID                 string `db:"id" json:"id"`
	UserID             string `db:"user_id" json:"userId"`
	Address            string `db:"address" json:"address"`
	PostalCode         string `db:"postal_code" json:"postalCode"`
	Description        string `db:"description" json:"description"`
	PrescriptionBlobID string `db:"prescription_blob_id" json:"prescriptionBlobId,omitempty"`
	PrescribedBy       string `db:"prescribed_by" json:"prescribedBy,omitempty"`
	Date               string `db:"date" json:"date"`
	Status             string `db:"status" json:"status"`
}

func (o *MedicineOrder) Clone() *MedicineOrder {
	c := *o
	return &c
}

// StatsOverview is the delivery partner's dashboard for one area.
type StatsOverview struct {
	Area       string `json:"area"`
	Pending    int    `json:"pending"`
	Confirmed  int    `json:"confirmed"`
	Delivering int    `json:"delivering"`
	Delivered  int    `json:"delivered"`
}
