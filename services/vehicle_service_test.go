package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/rto-lookup/models"
)

const primaryRecord = `{
	"customer_details": {"full_name": "RAVI KUMAR"},
	"vehicle_details": {"registration_no": "MH01AB1234", "vehicle_color": "WHITE"},
	"meta_data": {"signzy_response": {"result": {"model": "SWIFT VXI", "vehicleManufacturerName": "MARUTI SUZUKI", "vehicleInsuranceUpto": "2025-03-01"}}}
}`

type registryStub struct {
	primary  http.HandlerFunc
	fallback http.HandlerFunc
	hits     int32
}

func (r *registryStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/primary/", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&r.hits, 1)
		if req.URL.Query().Get("regn_no") != "MH01AB1234" {
			t.Errorf("unexpected regn_no %q", req.URL.Query().Get("regn_no"))
		}
		r.primary(w, req)
	})
	mux.HandleFunc("/fallback/", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&r.hits, 1)
		r.fallback(w, req)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, `{"detail":"not found"}`)
}

func TestVehicleService_Lookup(t *testing.T) {
	tests := []struct {
		name      string
		primary   http.HandlerFunc
		fallback  http.HandlerFunc
		wantErr   error
		wantAPI   string
		wantOwner string
		wantHits  int32
	}{
		{
			name:      "primary hit",
			primary:   func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, primaryRecord) },
			fallback:  notFound,
			wantAPI:   models.RegistryPrimary,
			wantOwner: "RAVI KUMAR",
			wantHits:  1,
		},
		{
			name:    "fallback hit",
			primary: notFound,
			fallback: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"status":true,"vaahan_details":`+primaryRecord+`}`)
			},
			wantAPI:   models.RegistryFallback,
			wantOwner: "RAVI KUMAR",
			wantHits:  2,
		},
		{
			name:     "fallback without details",
			primary:  notFound,
			fallback: func(w http.ResponseWriter, _ *http.Request) { writeJSON(w, http.StatusOK, `{"status":true}`) },
			wantErr:  ErrVehicleNotFound,
			wantHits: 2,
		},
		{
			name:    "fallback status false",
			primary: func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("oops")) },
			fallback: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"status":false,"vaahan_details":{}}`)
			},
			wantErr:  ErrVehicleNotFound,
			wantHits: 2,
		},
		{
			name:     "both miss",
			primary:  notFound,
			fallback: notFound,
			wantErr:  ErrVehicleNotFound,
			wantHits: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &registryStub{primary: tt.primary, fallback: tt.fallback}
			srv := stub.server(t)
			vs := NewVehicleService(srv.URL+"/primary/", srv.URL+"/fallback/", time.Second)

			result, err := vs.Lookup(context.Background(), "mh01 ab 1234")
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&stub.hits))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAPI, result.APIUsed)
			assert.Equal(t, "MH01AB1234", result.VehicleNumber)
			assert.Equal(t, tt.wantOwner, result.Summary.Owner)
			assert.Equal(t, "SWIFT VXI", result.Summary.Model)
			assert.JSONEq(t, primaryRecord, string(result.Raw))
		})
	}
}

func TestVehicleService_Lookup_UnexpectedShapeStillHits(t *testing.T) {
	stub := &registryStub{
		primary: func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, `{"vehicle_details":"unknown"}`)
		},
		fallback: notFound,
	}
	srv := stub.server(t)
	vs := NewVehicleService(srv.URL+"/primary/", srv.URL+"/fallback/", time.Second)

	result, err := vs.Lookup(context.Background(), "MH01AB1234")
	require.NoError(t, err)
	assert.Nil(t, result.Record)
	assert.Equal(t, "N/A", result.Summary.Owner)
}

func TestVehicleService_Lookup_EmptyNumber(t *testing.T) {
	vs := NewVehicleService("http://127.0.0.1:1/", "http://127.0.0.1:1/", time.Second)
	_, err := vs.Lookup(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestVehicleService_Lookup_Cancelled(t *testing.T) {
	stub := &registryStub{primary: notFound, fallback: notFound}
	srv := stub.server(t)
	vs := NewVehicleService(srv.URL+"/primary/", srv.URL+"/fallback/", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := vs.Lookup(ctx, "MH01AB1234")
	assert.ErrorIs(t, err, context.Canceled)
}
