package status

// Status represents booking status
type Status int

const (
	// Pending - waiting for a translator to accept
	Pending Status = iota + 1
	// Assigned - a translator holds the job
	Assigned
	// Started - the session is running
	Started
	// Completed - final state, session ended
	Completed
	// WithdrawBefore24 - customer cancelled 24h or more before due
	WithdrawBefore24
	// WithdrawAfter24 - customer cancelled within 24h of due
	WithdrawAfter24
	// TimedOut - nobody accepted before expiry, may be reopened
	TimedOut
	// NotCarriedOutCustomer - translator attended, customer did not
	NotCarriedOutCustomer
)

var (
	statusName = map[Status]string{Pending: "pending", Assigned: "assigned", Started: "started",
		Completed: "completed", WithdrawBefore24: "withdrawbefore24", WithdrawAfter24: "withdrawafter24",
		TimedOut: "timedout", NotCarriedOutCustomer: "not_carried_out_customer"}
	nameStatus = map[string]Status{"pending": Pending, "assigned": Assigned, "started": Started,
		"completed": Completed, "withdrawbefore24": WithdrawBefore24, "withdrawafter24": WithdrawAfter24,
		"timedout": TimedOut, "not_carried_out_customer": NotCarriedOutCustomer}
	terminal = map[Status]bool{Completed: true, WithdrawBefore24: true, WithdrawAfter24: true,
		NotCarriedOutCustomer: true}
)

func (st Status) String() string {
	return statusName[st]
}

// From returns status obj from string, false for an unknown name
func From(st string) (Status, bool) {
	res, ok := nameStatus[st]
	return res, ok
}

// IsTerminal returns true for statuses a job can never leave.
// timedout is not terminal - a reopen brings it back to pending
func (st Status) IsTerminal() bool {
	return terminal[st]
}
