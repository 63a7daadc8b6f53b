// Package notification turns newly detected feed events into render-ready
// notifications and maps each variant to its presentation metadata.
//
// Notification is a closed set: the marker method is unexported, so every
// switch over the variants in this package covers all of them.
package notification

import (
	"fmt"
	"time"
)

type Kind int

const (
	KindSplatfest Kind = iota
	KindBigRun
	KindEggstraWork
	KindRandom
	KindGolden
)

func (k Kind) String() string {
	switch k {
	case KindSplatfest:
		return "splatfest"
	case KindBigRun:
		return "big_run"
	case KindEggstraWork:
		return "eggstra_work"
	case KindRandom:
		return "random"
	case KindGolden:
		return "golden"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notification is one of Splatfest, BigRun, EggstraWork, Random or Golden.
type Notification interface {
	fmt.Stringer
	Kind() Kind
	notification()
}

// Stage is a Salmon Run stage name and its image URL.
type Stage struct {
	Name  string
	Image string
}

type Splatfest struct {
	Title     string
	Teams     []string
	TeamImage string
	Start     time.Time
	Tricolor  time.Time
	End       time.Time
}

type BigRun struct {
	Start time.Time
	End   time.Time
	King  string
	Stage Stage
}

type EggstraWork struct {
	Start   time.Time
	End     time.Time
	Weapons []string
	Stage   Stage
}

type Random struct {
	Start   time.Time
	End     time.Time
	Weapons []string
	King    string
	Stage   Stage
}

type Golden struct {
	Start time.Time
	End   time.Time
	King  string
	Stage Stage
}

func (Splatfest) Kind() Kind   { return KindSplatfest }
func (BigRun) Kind() Kind      { return KindBigRun }
func (EggstraWork) Kind() Kind { return KindEggstraWork }
func (Random) Kind() Kind      { return KindRandom }
func (Golden) Kind() Kind      { return KindGolden }

func (Splatfest) notification()   {}
func (BigRun) notification()      {}
func (EggstraWork) notification() {}
func (Random) notification()      {}
func (Golden) notification()      {}

func (n Splatfest) String() string   { return "Splatfest: " + n.Title }
func (n BigRun) String() string      { return "Big Run on " + n.Stage.Name }
func (n EggstraWork) String() string { return "Eggstra Work on " + n.Stage.Name }
func (n Random) String() string      { return "Random Rotation on " + n.Stage.Name }
func (n Golden) String() string      { return "Golden Rotation on " + n.Stage.Name }
