// Package panda reads and writes PANDA equipment harmonic database files.
//
// PANDA is the harmonic database maintained by TU Dresden
// (https://panda.et.tu-dresden.de/). A file describes one equipment under test
// (EUT) together with its measured current and voltage harmonic spectra and,
// optionally, raw sampled waveforms. Only the current text revision,
// TUDHDB_TXT_v01, is supported.
//
// A file looks like this:
//
//	TUDHDB_TXT_v01
//	[User Detail]
//	Lab_ID = 1234;
//	User_ID = 12;
//	[EUT]
//	Category = 1;
//	...
//	[Harmonics]
//	Current_Harmonics = 1,0.25,-12.5/3,0.08,170.2;
//	Voltage_Harmonics = 1,230,0/5,1.2,95;
//
// Spectra are encoded as "order,magnitude,phase" triples separated by '/',
// magnitudes as RMS values and phases in degrees. Pairs whose magnitude is zero
// are below the accuracy limit of the measurement system and are not written.
package panda
