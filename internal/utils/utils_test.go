package utils

import (
	"errors"
	"testing"
	"time"
)

func TestConvertStrToInt(t *testing.T) {
	type args struct {
		intStr string
	}
	tests := []struct {
		name    string
		args    args
		want    uint64
		wantErr bool
	}{
		{
			name: "Test hex with prefix",
			args: args{intStr: "0x100000000"},
			want: 0x100000000,
		},
		{
			name: "Test hex uppercase",
			args: args{intStr: "0xDEADBEEF"},
			want: 0xdeadbeef,
		},
		{
			name: "Test decimal",
			args: args{intStr: "4096"},
			want: 4096,
		},
		{
			name:    "Test garbage",
			args:    args{intStr: "not-a-number"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertStrToInt(tt.args.intStr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConvertStrToInt() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ConvertStrToInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Errorf("Retry() = %v, want success on third attempt", err)
	}
	if calls != 3 {
		t.Errorf("Retry() ran f %d times, want 3", calls)
	}

	calls = 0
	if err := Retry(2, time.Millisecond, func() error {
		calls++
		return errors.New("permanent")
	}); err == nil {
		t.Error("Retry() should surface the final error when attempts run out")
	}
	if calls != 2 {
		t.Errorf("Retry() ran f %d times, want 2", calls)
	}
}

