//
// web service that lets an external portal log a user into the
// learning-management platform with a shared portal secret, and
// fetch course sites, course modules, enrollments and
// percentage based grades for that user.
//
package otfportal
