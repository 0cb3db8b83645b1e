package calendar

// Hebrew month numbers. Months are counted from Nisan while the year begins
// at Tishrei, so a year runs 7..12 (13 in a leap year) then 1..6.
const (
	Nisan    = 1
	Iyar     = 2
	Sivan    = 3
	Tammuz   = 4
	Av       = 5
	Elul     = 6
	Tishrei  = 7
	Cheshvan = 8
	Kislev   = 9
	Teves    = 10
	Shevat   = 11
	Adar     = 12
	AdarII   = 13
)

// hebrewEpoch is the absolute day of 1 Tishrei AM 1 minus one.
const hebrewEpoch = -1373429

var monthNames = [...]string{"", "Nisan", "Iyar", "Sivan", "Tammuz", "Av", "Elul",
	"Tishrei", "Cheshvan", "Kislev", "Teves", "Shevat", "Adar", "Adar II"}

// IsLeapYear reports whether the Hebrew year has a thirteenth month.
func IsLeapYear(year int) bool {
	return (7*year+1)%19 < 7
}

// MonthsInYear returns 13 for leap years and 12 otherwise.
func MonthsInYear(year int) int {
	if IsLeapYear(year) {
		return 13
	}
	return 12
}

// elapsedDays returns the number of days from the epoch to 1 Tishrei of year,
// applying the molad postponement rules.
func elapsedDays(year int) int64 {
	y := int64(year - 1)
	monthsElapsed := 235*(y/19) + 12*(y%19) + (7*(y%19)+1)/19
	partsElapsed := 204 + 793*(monthsElapsed%1080)
	hoursElapsed := 5 + 12*monthsElapsed + 793*(monthsElapsed/1080) + partsElapsed/1080
	day := 1 + 29*monthsElapsed + hoursElapsed/24
	parts := 1080*(hoursElapsed%24) + partsElapsed%1080

	if parts >= 19440 ||
		(day%7 == 2 && parts >= 9924 && !IsLeapYear(year)) ||
		(day%7 == 1 && parts >= 16789 && IsLeapYear(year-1)) {
		day++
	}
	if d := day % 7; d == 0 || d == 3 || d == 5 {
		day++
	}
	return day
}

// DaysInYear returns 353..355 or 383..385.
func DaysInYear(year int) int {
	return int(elapsedDays(year+1) - elapsedDays(year))
}

func longCheshvan(year int) bool { return DaysInYear(year)%10 == 5 }

func shortKislev(year int) bool { return DaysInYear(year)%10 == 3 }

// DaysInMonth returns 29 or 30. Month 13 of a common year has no days.
func DaysInMonth(year, month int) int {
	switch month {
	case Iyar, Tammuz, Elul, Teves, AdarII:
		if month == AdarII && !IsLeapYear(year) {
			return 0
		}
		return 29
	case Adar:
		if !IsLeapYear(year) {
			return 29
		}
	case Cheshvan:
		if !longCheshvan(year) {
			return 29
		}
	case Kislev:
		if shortKislev(year) {
			return 29
		}
	}
	if month < 1 || month > 13 {
		return 0
	}
	return 30
}

// AbsFromHebrew converts a Hebrew date to an absolute day number. The input is
// not validated; use New for user-supplied components.
func AbsFromHebrew(year, month, day int) int64 {
	days := int64(day)
	if month < Tishrei {
		for m := Tishrei; m <= MonthsInYear(year); m++ {
			days += int64(DaysInMonth(year, m))
		}
		for m := Nisan; m < month; m++ {
			days += int64(DaysInMonth(year, m))
		}
	} else {
		for m := Tishrei; m < month; m++ {
			days += int64(DaysInMonth(year, m))
		}
	}
	return days + elapsedDays(year) + hebrewEpoch
}

func hebrewFromAbs(abs int64) (year, month, day int) {
	year = int((abs - hebrewEpoch) / 366)
	for abs >= AbsFromHebrew(year+1, Tishrei, 1) {
		year++
	}

	month = Tishrei
	if abs >= AbsFromHebrew(year, Nisan, 1) {
		month = Nisan
	}
	for abs > AbsFromHebrew(year, month, DaysInMonth(year, month)) {
		month++
	}
	day = int(abs-AbsFromHebrew(year, month, 1)) + 1
	return year, month, day
}

// monthPosition is the zero-based position of month within its year counted
// from Tishrei.
func monthPosition(year, month int) int {
	if month >= Tishrei {
		return month - Tishrei
	}
	return MonthsInYear(year) - Tishrei + month
}

// MonthsBetween counts lunisolar months from (y1, m1) to (y2, m2), adding the
// real length of every year in between.
func MonthsBetween(y1, m1, y2, m2 int) int {
	months := 0
	for y := y1; y < y2; y++ {
		months += MonthsInYear(y)
	}
	for y := y2; y < y1; y++ {
		months -= MonthsInYear(y)
	}
	return months + monthPosition(y2, m2) - monthPosition(y1, m1)
}

// MonthName returns the English transliteration, distinguishing Adar I in
// leap years.
func MonthName(year, month int) string {
	if month < 1 || month >= len(monthNames) {
		return ""
	}
	if month == Adar && IsLeapYear(year) {
		return "Adar I"
	}
	return monthNames[month]
}
