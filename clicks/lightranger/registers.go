package lightranger

const (
	// Default 7-bit I2C address.
	Address = 0x29

	modelID = 0xB4

	regModelID             = 0x000
	regModeGPIO1           = 0x011
	regInterruptConfig     = 0x014
	regInterruptClear      = 0x015
	regFreshOutOfReset     = 0x016
	regRangeStart          = 0x018
	regRangeInterMeasure   = 0x01B
	regRangeOffset         = 0x024
	regRangeVHVRecalibrate = 0x02E
	regRangeVHVRepeatRate  = 0x031
	regALSStart            = 0x038
	regALSInterMeasure     = 0x03E
	regALSGain             = 0x03F
	regALSIntegration      = 0x040 // 16-bit
	regRangeStatus         = 0x04D
	regInterruptStatus     = 0x04F
	regALSValue            = 0x050 // 16-bit
	regRangeValue          = 0x062
	regAveragingPeriod     = 0x10A
	regSlaveAddress        = 0x212

	startSingle     = 0x01
	startContinuous = 0x03

	clearRange = 0x01
	clearALS   = 0x02
	clearError = 0x04
	clearAll   = clearRange | clearALS | clearError

	rangeReady = 0x04 // RESULT__INTERRUPT_STATUS_GPIO[2:0]
	alsReady   = 0x20 // RESULT__INTERRUPT_STATUS_GPIO[5:3] == 4
)

type regVal struct {
	reg uint16
	val byte
}

// Mandatory private settings from the ST application note, loaded once
// after power-up while SYSTEM__FRESH_OUT_OF_RESET is set.
var privateInit = [...]regVal{
	{0x0207, 0x01}, {0x0208, 0x01}, {0x0096, 0x00}, {0x0097, 0xFD},
	{0x00E3, 0x00}, {0x00E4, 0x04}, {0x00E5, 0x02}, {0x00E6, 0x01},
	{0x00E7, 0x03}, {0x00F5, 0x02}, {0x00D9, 0x05}, {0x00DB, 0xCE},
	{0x00DC, 0x03}, {0x00DD, 0xF8}, {0x009F, 0x00}, {0x00A3, 0x3C},
	{0x00B7, 0x00}, {0x00BB, 0x3C}, {0x00B2, 0x09}, {0x00CA, 0x09},
	{0x0198, 0x01}, {0x01B0, 0x17}, {0x01AD, 0x00}, {0x00FF, 0x05},
	{0x0100, 0x05}, {0x0199, 0x05}, {0x01A6, 0x1B}, {0x01AC, 0x3E},
	{0x01A7, 0x1F}, {0x0030, 0x00},
}

// Recommended public settings.
var publicInit = [...]regVal{
	{regModeGPIO1, 0x10},           // GPIO1 interrupt output, active low
	{regAveragingPeriod, 0x30},     // 4.3 ms averaging
	{regALSGain, 0x46},             // ALS gain 1.0
	{regRangeVHVRepeatRate, 0xFF},  // VHV recalibration every 255 ranges
	{regALSIntegration + 1, 0x63},  // 100 ms ALS integration
	{regRangeVHVRecalibrate, 0x01}, // manual VHV calibration
	{regRangeInterMeasure, 0x09},   // 100 ms continuous ranging period
	{regALSInterMeasure, 0x31},     // 500 ms continuous ALS period
	{regInterruptConfig, 0x24},     // new-sample-ready for range and ALS
}
