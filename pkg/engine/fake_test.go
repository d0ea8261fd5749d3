package engine

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/entrhq/reservation-bulk-add/pkg/reservation"
)

// MockDriver is a testify mock of reservation.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Login(ctx context.Context, creds reservation.Credentials) error {
	args := m.Called(ctx, creds)
	return args.Error(0)
}

func (m *MockDriver) OpenReservation(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func (m *MockDriver) AddBarcode(ctx context.Context, barcode string) error {
	args := m.Called(ctx, barcode)
	return args.Error(0)
}

func (m *MockDriver) Close() error {
	args := m.Called()
	return args.Error(0)
}

// staticFactory hands out prepared drivers in order.
type staticFactory struct {
	mu      sync.Mutex
	drivers []reservation.Driver
}

func (f *staticFactory) Launch(ctx context.Context, worker string) (reservation.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.drivers) == 0 {
		return nil, &reservation.Error{Kind: reservation.KindSessionFaulted, Op: reservation.OpLogin, Detail: "no browser left"}
	}
	d := f.drivers[0]
	f.drivers = f.drivers[1:]
	return d, nil
}

// site is a scripted stand-in for the web application, shared by every
// fakeDriver it launches.
type site struct {
	mu sync.Mutex

	// login and open return the error for a worker's nth session (from 1).
	login func(worker string, session int) error
	open  func(worker string, session int) error

	// add returns the error for the nth submission of barcode (from 1).
	add func(barcode string, n int) error

	// delay is how long each submission takes.
	delay time.Duration

	launches    map[string]int
	submissions map[string]int
	added       []string
	inFlight    int
	maxInFlight int
	closed      int
}

func newSite() *site {
	return &site{
		launches:    make(map[string]int),
		submissions: make(map[string]int),
	}
}

func (s *site) Launch(ctx context.Context, worker string) (reservation.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.launches[worker]++
	n := s.launches[worker]
	s.mu.Unlock()
	return &fakeDriver{site: s, worker: worker, session: n}, nil
}

func (s *site) totalLaunches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.launches {
		n += v
	}
	return n
}

func (s *site) totalSubmissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.submissions {
		n += v
	}
	return n
}

func (s *site) submissionsOf(barcode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[barcode]
}

type fakeDriver struct {
	site    *site
	worker  string
	session int
}

func (d *fakeDriver) Login(ctx context.Context, creds reservation.Credentials) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.site.login != nil {
		return d.site.login(d.worker, d.session)
	}
	return nil
}

func (d *fakeDriver) OpenReservation(ctx context.Context, reservationID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.site.open != nil {
		return d.site.open(d.worker, d.session)
	}
	return nil
}

func (d *fakeDriver) AddBarcode(ctx context.Context, barcode string) error {
	s := d.site

	s.mu.Lock()
	s.submissions[barcode]++
	n := s.submissions[barcode]
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var err error
	if s.add != nil {
		err = s.add(barcode, n)
	}
	if err == nil {
		s.mu.Lock()
		s.added = append(s.added, barcode)
		s.mu.Unlock()
	}
	return err
}

func (d *fakeDriver) Close() error {
	d.site.mu.Lock()
	d.site.closed++
	d.site.mu.Unlock()
	return nil
}

func transient(barcode string) error {
	return &reservation.Error{Kind: reservation.KindTransient, Op: reservation.OpAddBarcode, Barcode: barcode, Detail: "timed out waiting for confirmation"}
}

func rejected(barcode string) error {
	return &reservation.Error{Kind: reservation.KindRejected, Op: reservation.OpAddBarcode, Barcode: barcode, Detail: "Unknown asset " + barcode}
}

func duplicate(barcode string) error {
	return &reservation.Error{Kind: reservation.KindDuplicate, Op: reservation.OpAddBarcode, Barcode: barcode, Detail: "already added"}
}

func faulted(op string) error {
	return &reservation.Error{Kind: reservation.KindSessionFaulted, Op: op, Detail: "page closed"}
}

var (
	errBadLogin          = &reservation.Error{Kind: reservation.KindAuth, Op: reservation.OpLogin, Detail: "Invalid email or password"}
	errNoSuchReservation = &reservation.Error{Kind: reservation.KindNotFound, Op: reservation.OpOpenReservation, Detail: "HTTP 404"}
)
