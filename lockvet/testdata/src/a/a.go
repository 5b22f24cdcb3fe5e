package a

type mutex struct{}

type guard struct{}

func (*mutex) Acquire() guard { return guard{} }
func (guard) Release()        {}

var (
	lockA mutex
	lockP = new(mutex)
)

type noRelease struct{}

func (*noRelease) Acquire() int { return 0 }

type argAcquire struct{}

func (argAcquire) Acquire(n int) guard { return guard{} }

var (
	badLock   noRelease
	argLock   argAcquire
	plainLock int
)

const constLock = 1

func funcLock() {}

type typeLock struct{}

//lockgen:exclusive lockA
func ok1() {}

//lockgen:exclusive lockP
func ok2() {}

// ok3 takes two locks.
//
//lockgen:exclusive lockA
//lockgen:exclusive lockP
func ok3() {}

//lockgen:exclusive lockA
func (m *mutex) ok4(n int) (err error) { return nil }

//lockgen:exclusive lockA
func ok5() {
	lockA := 1
	_ = lockA
}

//lockgen:exclusive undefinedLock // want `lock undefinedLock is not declared at package level`
func undeclared() {}

//lockgen:exclusive constLock // want `lock constLock is a constant, not a variable`
func notVar1() {}

//lockgen:exclusive funcLock // want `lock funcLock is a function, not a variable`
func notVar2() {}

//lockgen:exclusive typeLock // want `lock typeLock is a type, not a variable`
func notVar3() {}

//lockgen:exclusive plainLock // want `lock plainLock of type int has no Acquire method`
func noAcquire() {}

//lockgen:exclusive badLock // want `lock badLock: int returned by Acquire has no Release method`
func noRel() {}

//lockgen:exclusive argLock // want `lock argLock: Acquire must take no arguments and return one value`
func acquireArgs() {}

//lockgen:exclusive lockA
func shadowParam(lockA int) {} // want `parameter lockA shadows lock lockA named in the directive`

//lockgen:exclusive lockA
func (lockA *mutex) shadowRecv() {} // want `receiver lockA shadows lock lockA named in the directive`

//lockgen:exclusive lockA
func shadowResult() (lockA int) { return 0 } // want `result lockA shadows lock lockA named in the directive`

//lockgen:exclusive lockA
func shadowTypeParam[lockA any]() {} // want `type parameter lockA shadows lock lockA named in the directive`

//lockgen:exclusive lockA
//lockgen:exclusive lockA // want `lock lockA is acquired twice by twice; the second acquisition deadlocks`
func twice() {}

//lockgen:exclusive A, B // want `malformed annotation arguments: want a single lock name`
func twoLocks() {}

//lockgen:exclusive // want `malformed annotation arguments: missing lock name`
func noLock() {}

//lockgen:exclusive "lockA" // want `malformed annotation arguments: want a lock name, got literal "lockA"`
func literalLock() {}

//lockgen:exclusive lockA // want `not a function: cannot annotate type declaration; want a function`
type T struct{}

var (
	//lockgen:exclusive lockA // want `not a function: cannot annotate var declaration; want a function`
	v int
)

func body() {
	//lockgen:exclusive lockA // want `not a function: directive is not in the doc comment of a function declaration`
}
