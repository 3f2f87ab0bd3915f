package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/blobstore"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/pkg/calendar"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNoPrescription   = errors.New("order has no prescription attached")
	ErrPatientNotInArea = errors.New("patient is not registered in your area")
)

// Patients is the part of the identity service orders depend on.
type Patients interface {
	FindUserByID(ctx context.Context, id string) (*identity.User, error)
	PatientIDsInArea(ctx context.Context, area string) ([]string, error)
	GetPatientAddressAndPostalCode(ctx context.Context, userID string) (identity.Address, error)
}

type Service struct {
	orders   OrderRepository
	history  lifecycle.HistoryRepository
	patients Patients
	blobs    blobstore.Store
	cal      *calendar.Calendar
	events   events.Publisher
}

func NewService(orders OrderRepository, history lifecycle.HistoryRepository, patients Patients, blobs blobstore.Store, cal *calendar.Calendar) *Service {
	return &Service{
		orders:   orders,
		history:  history,
		patients: patients,
		blobs:    blobs,
		cal:      cal,
		events:   events.Nop{},
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.events = p
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (*MedicineOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *Service) FindOrdersByUserID(ctx context.Context, userID string) ([]*MedicineOrder, error) {
	return s.orders.ListByUser(ctx, userID)
}

// FindOrdersByArea returns the orders of every patient in area. A non-empty
// status narrows the result.
func (s *Service) FindOrdersByArea(ctx context.Context, area, status string) ([]*MedicineOrder, error) {
	ids, err := s.patients.PatientIDsInArea(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("resolve area patients: %w", err)
	}
	if len(ids) == 0 {
		return []*MedicineOrder{}, nil
	}
	items, err := s.orders.ListByUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	if status != "" {
		items = lo.Filter(items, func(o *MedicineOrder, _ int) bool { return o.Status == status })
	}
	return items, nil
}

// InArea reports whether the order belongs to a patient of area.
func (s *Service) InArea(ctx context.Context, o *MedicineOrder, area string) (bool, error) {
	ids, err := s.patients.PatientIDsInArea(ctx, area)
	if err != nil {
		return false, err
	}
	return lo.Contains(ids, o.UserID), nil
}

func validate(o *MedicineOrder) error {
	o.Address = strings.TrimSpace(o.Address)
	o.PostalCode = strings.TrimSpace(o.PostalCode)
	o.Description = strings.TrimSpace(o.Description)
	if o.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if o.Address == "" || o.PostalCode == "" {
		return fmt.Errorf("%w: address and postal code are required", ErrValidation)
	}
	if o.Status == "" {
		o.Status = Machine.Initial()
	}
	if !Machine.Known(o.Status) {
		return fmt.Errorf("%w: order %q", lifecycle.ErrUnknownStatus, o.Status)
	}
	return nil
}

// SaveMedicineOrder stores o dated today. Status defaults to pending.
func (s *Service) SaveMedicineOrder(ctx context.Context, o *MedicineOrder) (*MedicineOrder, error) {
	if err := validate(o); err != nil {
		return nil, err
	}

	o.ID = ""
	o.Date = s.cal.Today()
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create medicine order: %w", err)
	}

	e := events.New(events.OrderCreated, o.ID)
	e.UserID = o.UserID
	e.Actor = o.PrescribedBy
	e.To = o.Status
	_ = s.events.Publish(ctx, e)
	return o.Clone(), nil
}

// PlaceOrder saves an order together with its prescription image. The
// image is stored before the order so a rejected file leaves no order.
func (s *Service) PlaceOrder(ctx context.Context, o *MedicineOrder, file blobstore.Metadata, content io.Reader) (*MedicineOrder, error) {
	if err := validate(o); err != nil {
		return nil, err
	}
	if content != nil {
		file.OwnerID = o.UserID
		file.CreatedBy = o.UserID
		meta, err := s.blobs.Put(ctx, file, content)
		if err != nil {
			return nil, err
		}
		o.PrescriptionBlobID = meta.ID
	}
	return s.SaveMedicineOrder(ctx, o)
}

// Prescribe creates an order on a patient's behalf, addressed to the
// patient's registered village.
func (s *Service) Prescribe(ctx context.Context, doctor *identity.User, patientID, description string) (*MedicineOrder, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("%w: prescription text is required", ErrValidation)
	}
	patient, err := s.patients.FindUserByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !patient.IsPatient() || patient.Area != doctor.Area {
		return nil, ErrPatientNotInArea
	}
	addr, err := s.patients.GetPatientAddressAndPostalCode(ctx, patient.ID)
	if err != nil {
		return nil, err
	}
	return s.SaveMedicineOrder(ctx, &MedicineOrder{
		UserID:       patient.ID,
		Address:      addr.Address,
		PostalCode:   addr.PostalCode,
		Description:  description,
		PrescribedBy: doctor.ID,
	})
}

// AttachPrescription stores an image and links it to an existing order.
func (s *Service) AttachPrescription(ctx context.Context, orderID, actor string, file blobstore.Metadata, content io.Reader) (*MedicineOrder, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	file.OwnerID = o.UserID
	file.CreatedBy = actor
	meta, err := s.blobs.Put(ctx, file, content)
	if err != nil {
		return nil, err
	}
	updated, err := s.orders.SetPrescription(ctx, orderID, meta.ID)
	if err != nil {
		return nil, err
	}
	if o.PrescriptionBlobID != "" {
		_ = s.blobs.Delete(ctx, o.PrescriptionBlobID)
	}

	e := events.New(events.PrescriptionAttached, updated.ID)
	e.UserID = updated.UserID
	e.Actor = actor
	e.Data = map[string]string{"blobId": meta.ID}
	_ = s.events.Publish(ctx, e)
	return updated, nil
}

// Prescription opens the image attached to the order.
func (s *Service) Prescription(ctx context.Context, o *MedicineOrder) (io.ReadCloser, *blobstore.Metadata, error) {
	if o.PrescriptionBlobID == "" {
		return nil, nil, ErrNoPrescription
	}
	return s.blobs.Get(ctx, o.PrescriptionBlobID)
}

// UpdateOrderStatus applies a lifecycle move and records it in history.
func (s *Service) UpdateOrderStatus(ctx context.Context, id, status, actor string) (*MedicineOrder, error) {
	var from string
	o, err := s.orders.UpdateStatus(ctx, lifecycle.StatusChange{
		Entity:    EntityOrder,
		EntityID:  id,
		To:        status,
		ChangedBy: actor,
		ChangedAt: s.cal.Now(),
	}, func(current string) error {
		from = current
		return Machine.Validate(current, status)
	})
	if err != nil {
		return nil, err
	}

	e := events.New(events.OrderStatusChanged, o.ID)
	e.UserID = o.UserID
	e.Actor = actor
	e.From = from
	e.To = o.Status
	_ = s.events.Publish(ctx, e)
	return o, nil
}

func (s *Service) CountOrdersByAreaAndStatus(ctx context.Context, area, status string) (int, error) {
	items, err := s.FindOrdersByArea(ctx, area, status)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (s *Service) AreaDashboard(ctx context.Context, area string) (StatsOverview, error) {
	items, err := s.FindOrdersByArea(ctx, area, "")
	if err != nil {
		return StatsOverview{}, err
	}
	counts := lo.CountValuesBy(items, func(o *MedicineOrder) string { return o.Status })
	return StatsOverview{
		Area:       area,
		Pending:    counts[StatusPending],
		Confirmed:  counts[StatusConfirmed],
		Delivering: counts[StatusDelivering],
		Delivered:  counts[StatusDelivered],
	}, nil
}

func (s *Service) History(ctx context.Context, id string) ([]lifecycle.StatusChange, error) {
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, EntityOrder, id)
}
