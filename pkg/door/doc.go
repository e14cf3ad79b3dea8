// Package door wires the access controller together and runs its loop.
//
// A Door owns one credential store, one access machine and one debounce
// guard. Run starts a pump goroutine that blocks on the codec and forwards
// frames over a channel; the loop goroutine samples the button, picks up at
// most one frame and steps the machine. Only the loop touches the machine and
// performs store mutations.
//
// # Creating a Door
//
//	mem := nvm.NewRAM(store.SizeFor(16))
//	l := line.New()
//	d, err := door.New(door.Config{
//	    Memory:   mem,
//	    Capacity: 16,
//	    Codec:    codec.NewSerial(l.Reader()),
//	    Button:   button,
//	    Actuator: relay,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go d.Run(ctx)
//	l.Present(id)
//
// The owner of the codec's source closes it after Run returns; that releases
// the pump goroutine.
package door
