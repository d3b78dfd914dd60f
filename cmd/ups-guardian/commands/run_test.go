package commands

import (
	"errors"
	"testing"

	"github.com/sweeney/ups-guardian/internal/config"
	"github.com/sweeney/ups-guardian/internal/hidtransport/hidtransporttest"
	"github.com/sweeney/ups-guardian/internal/hidups/megatec"
	"github.com/sweeney/ups-guardian/internal/hidups/voltronic"
)

func TestDialectWrapper_Voltronic(t *testing.T) {
	wrap, err := dialectWrapper(config.ModelVoltronic)
	if err != nil {
		t.Fatalf("dialectWrapper: %v", err)
	}
	device := hidtransporttest.NewFakeDevice()
	ups := wrap(device)
	if _, ok := ups.(*voltronic.Ups); !ok {
		t.Errorf("dialectWrapper(voltronic) produced %T, want *voltronic.Ups", ups)
	}
}

func TestDialectWrapper_Megatec(t *testing.T) {
	wrap, err := dialectWrapper(config.ModelMegatec)
	if err != nil {
		t.Fatalf("dialectWrapper: %v", err)
	}
	device := hidtransporttest.NewFakeDevice()
	ups := wrap(device)
	if _, ok := ups.(*megatec.Ups); !ok {
		t.Errorf("dialectWrapper(megatec) produced %T, want *megatec.Ups", ups)
	}
}

func TestDialectWrapper_UnknownModel(t *testing.T) {
	_, err := dialectWrapper(config.Model("unknown"))
	if err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestLabeled_WrapsAndPassesThroughNil(t *testing.T) {
	if err := labeled("x", nil); err != nil {
		t.Errorf("labeled(nil) = %v, want nil", err)
	}
	wrapped := labeled("poller", errors.New("boom"))
	if wrapped == nil || wrapped.Error() != "poller: boom" {
		t.Errorf("labeled() = %v, want \"poller: boom\"", wrapped)
	}
}
