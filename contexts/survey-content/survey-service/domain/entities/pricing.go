package entities

const (
	AgeScreeningCost = 5
	PullUpCost       = 1
	StatInquiryCost  = 1
)

// UploadDurationCost is what an author pays for the estimated answering time.
func UploadDurationCost(minutes int) int64 {
	switch {
	case minutes >= 16:
		return 35
	case minutes >= 11:
		return 30
	default:
		return int64((minutes+1)/2) * 5
	}
}

// ParticipationReward is what a participant earns for the estimated time.
func ParticipationReward(minutes int) int64 {
	switch {
	case minutes >= 11:
		return 4
	case minutes >= 7:
		return 3
	case minutes >= 3:
		return 2
	default:
		return 1
	}
}

// ExtraCreditPool is the amount reserved up front for lottery winners.
func ExtraCreditPool(extraCredit int64, winnerCount int) int64 {
	return extraCredit * int64(winnerCount)
}

// UploadCost is the total charge for publishing a research.
func UploadCost(minutes int, extraCredit int64, winnerCount int, ageScreening bool) int64 {
	cost := UploadDurationCost(minutes) + ExtraCreditPool(extraCredit, winnerCount)
	if ageScreening {
		cost += AgeScreeningCost
	}
	return cost
}

// PoolIncrease is what raising the reserved pool costs. Shrinking it is
// free and refunds nothing.
func PoolIncrease(current Entity, extraCredit int64, winnerCount int) int64 {
	increase := ExtraCreditPool(extraCredit, winnerCount) - ExtraCreditPool(current.ExtraCredit, current.WinnerCount)
	if increase < 0 {
		return 0
	}
	return increase
}

// PullUpCharge is the pull-up fee plus any increase of the reserved pool.
func PullUpCharge(current Entity, extraCredit int64, winnerCount int) int64 {
	return PullUpCost + PoolIncrease(current, extraCredit, winnerCount)
}

func InitialDistributionState(extraCredit int64, winnerCount int) DistributionState {
	if extraCredit > 0 && winnerCount > 0 {
		return DistributionPending
	}
	return DistributionNotApplicable
}

// RevisedDistributionState is the state after the pool of an undistributed
// entity changes: any pool makes it PENDING, an empty pool NOT_APPLICABLE.
func RevisedDistributionState(current DistributionState, extraCredit int64, winnerCount int) DistributionState {
	if current == DistributionDistributed {
		return current
	}
	return InitialDistributionState(extraCredit, winnerCount)
}
